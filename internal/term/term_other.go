//go:build !unix

package term

func cellSize(int) (int, int) {
	return FallbackCellWidth, FallbackCellHeight
}
