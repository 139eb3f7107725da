package hostio

import "errors"

// Host surface errors.
var (
	// ErrBadPayload indicates a malformed or inconsistent JSON payload.
	ErrBadPayload = errors.New("bad payload")
)
