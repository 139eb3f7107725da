package engine

import "errors"

// Engine errors.
var (
	// ErrNilRenderer indicates New was called without a renderer.
	ErrNilRenderer = errors.New("renderer is nil")
)
