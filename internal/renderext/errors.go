package renderext

import "fmt"

// RenderError is a displayable render failure. Line refers to the
// block's source when the external tool reports one.
type RenderError struct {
	// Message is the one-line summary shown to the host.
	Message string

	// Detail is the offending source element, when known.
	Detail string

	// Line is the failing line within the block source, 0 if unknown.
	Line int
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	switch {
	case e.Detail != "" && e.Line > 0:
		return fmt.Sprintf("%s (l.%d: %s)", e.Message, e.Line, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Detail)
	case e.Line > 0:
		return fmt.Sprintf("%s (l.%d)", e.Message, e.Line)
	default:
		return e.Message
	}
}
