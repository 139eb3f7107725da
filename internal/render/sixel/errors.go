package sixel

import "errors"

// Sentinel errors for the encoder.
var (
	// ErrChunkLimit is returned when a bitmap needs more transmission
	// chunks than the configured limit. The emitted chunks are still
	// valid; the block is simply truncated.
	ErrChunkLimit = errors.New("sixel chunk limit exceeded")
)
