//go:build unix

package term

import "golang.org/x/sys/unix"

func cellSize(fd int) (int, int) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Row == 0 || ws.Col == 0 {
		return FallbackCellWidth, FallbackCellHeight
	}

	width := FallbackCellWidth
	if ws.Xpixel > 2 {
		width = int(ws.Xpixel) / int(ws.Col)
	}
	height := FallbackCellHeight
	if ws.Ypixel > 2 {
		height = int(ws.Ypixel) / int(ws.Row)
	}
	if width <= 0 {
		width = FallbackCellWidth
	}
	if height <= 0 {
		height = FallbackCellHeight
	}
	return width, height
}
