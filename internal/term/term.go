// Package term probes terminal cell metrics needed to size graphics.
package term

// Fallback cell dimensions in pixels, used when the terminal does not
// report pixel sizes.
const (
	FallbackCellWidth  = 10
	FallbackCellHeight = 28
)

// CellSize returns the size of one terminal cell in pixels for the
// terminal attached to the given file descriptor. Terminals that do
// not report pixel dimensions get the fallback values.
func CellSize(fd int) (width, height int) {
	return cellSize(fd)
}
