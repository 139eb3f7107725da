package config

import "errors"

// Sentinel errors for configuration handling.
var (
	// ErrInvalidValue is returned when a configuration value is out of range.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// ParseError wraps a TOML parse failure with the file path.
type ParseError struct {
	// Path is the configuration file that failed to parse.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return "parse " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
