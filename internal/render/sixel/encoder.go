// Package sixel encodes bitmaps into sixel graphics sequences.
//
// Output is deterministic and idempotent: encoding the same bitmap and
// rectangle twice yields byte-identical sequences, which the draw
// scheduler relies on for retry and continuation. Large bitmaps are
// split into horizontal bands so no single escape sequence grows
// unbounded.
package sixel

import (
	"fmt"
	"image"
	"image/draw"
	"strconv"

	xdraw "golang.org/x/image/draw"

	"github.com/dshills/termart/internal/render/core"
)

// Chunk is one bounded sixel sequence positioned relative to the
// block's screen rectangle.
type Chunk struct {
	// RowOffset is the chunk's first text row, counted from the top of
	// the rectangle.
	RowOffset int

	// Data is the complete DCS sequence for this band.
	Data []byte
}

// Encoder converts bitmaps to positioned sixel chunks.
type Encoder struct {
	cellWidth  int
	cellHeight int
	chunkRows  int
	maxChunks  int
}

// NewEncoder creates an encoder for the given cell pixel size.
func NewEncoder(cellWidth, cellHeight, chunkRows, maxChunks int) *Encoder {
	paletteOnce.Do(initPalette)
	if cellWidth <= 0 {
		cellWidth = 1
	}
	if cellHeight <= 0 {
		cellHeight = 1
	}
	if chunkRows <= 0 {
		chunkRows = 16
	}
	if maxChunks <= 0 {
		maxChunks = 64
	}
	return &Encoder{
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		chunkRows:  chunkRows,
		maxChunks:  maxChunks,
	}
}

// Encode scales the bitmap to the rectangle, applies the rectangle's
// crop hints, and emits one chunk per band of chunkRows text rows.
// When the band count exceeds the chunk limit the output is truncated
// and ErrChunkLimit is returned alongside the chunks that fit.
func (e *Encoder) Encode(bitmap image.Image, rect core.Rect) ([]Chunk, error) {
	if bitmap == nil || rect.Rows <= 0 || rect.Cols <= 0 {
		return nil, nil
	}

	fullRows := rect.Rows + rect.CropTop + rect.CropBottom
	scaled := e.fit(bitmap, rect.Cols*e.cellWidth, fullRows*e.cellHeight)

	// Crop the viewport-hidden part in pixel space.
	top := rect.CropTop * e.cellHeight
	visibleH := scaled.Bounds().Dy() - top - rect.CropBottom*e.cellHeight
	if visibleH <= 0 {
		return nil, nil
	}
	maxH := rect.Rows * e.cellHeight
	if visibleH > maxH {
		visibleH = maxH
	}

	idx := quantize(scaled)
	width := scaled.Bounds().Dx()

	bandPx := e.chunkRows * e.cellHeight
	bands := (visibleH + bandPx - 1) / bandPx

	var err error
	if bands > e.maxChunks {
		err = fmt.Errorf("%w: %d bands over limit %d", ErrChunkLimit, bands, e.maxChunks)
		bands = e.maxChunks
	}

	chunks := make([]Chunk, 0, bands)
	for b := 0; b < bands; b++ {
		y0 := top + b*bandPx
		h := bandPx
		if y0+h > top+visibleH {
			h = top + visibleH - y0
		}
		data := encodeBand(idx, width, y0, h)
		if data == nil {
			continue
		}
		chunks = append(chunks, Chunk{RowOffset: b * e.chunkRows, Data: data})
	}
	return chunks, err
}

// fit scales the bitmap to fit inside the box, preserving aspect
// ratio. Matches the upstream behavior of fitting by height with the
// width capped at the window edge.
func (e *Encoder) fit(src image.Image, maxW, maxH int) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw <= 0 || sh <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	scale := float64(maxH) / float64(sh)
	if s := float64(maxW) / float64(sw); s < scale {
		scale = s
	}

	dw := int(float64(sw) * scale)
	dh := int(float64(sh) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

// quantize maps every pixel to a palette index, or -1 for transparent.
func quantize(img *image.RGBA) [][]int16 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	idx := make([][]int16, h)
	for y := 0; y < h; y++ {
		row := make([]int16, w)
		for x := 0; x < w; x++ {
			c := img.RGBAAt(x, y)
			if c.A < 128 {
				row[x] = -1
				continue
			}
			row[x] = int16(nearestIndex(c.R, c.G, c.B))
		}
		idx[y] = row
	}
	return idx
}

// encodeBand emits one sixel DCS sequence for the pixel rows
// [y0, y0+h) of the quantized bitmap. Returns nil if the band is fully
// transparent.
func encodeBand(idx [][]int16, width, y0, h int) []byte {
	used := [paletteSize]bool{}
	any := false
	for y := y0; y < y0+h && y < len(idx); y++ {
		for _, v := range idx[y] {
			if v >= 0 {
				used[v] = true
				any = true
			}
		}
	}
	if !any {
		return nil
	}

	var buf []byte
	// DCS q with P2=1: zero bits leave the background untouched so the
	// host's text cells survive around the graphic.
	buf = append(buf, "\x1bP0;1;0q"...)
	buf = append(buf, fmt.Sprintf("\"1;1;%d;%d", width, h)...)

	for i := 0; i < paletteSize; i++ {
		if !used[i] {
			continue
		}
		r, g, b := registerDef(i)
		buf = append(buf, fmt.Sprintf("#%d;2;%d;%d;%d", i, r, g, b)...)
	}

	for stripY := y0; stripY < y0+h; stripY += 6 {
		stripH := 6
		if stripY+stripH > y0+h {
			stripH = y0 + h - stripY
		}

		first := true
		for c := 0; c < paletteSize; c++ {
			if !used[c] {
				continue
			}
			line := stripLine(idx, width, stripY, stripH, int16(c))
			if line == nil {
				continue
			}
			if !first {
				buf = append(buf, '$')
			}
			first = false
			buf = append(buf, '#')
			buf = append(buf, strconv.Itoa(c)...)
			buf = append(buf, line...)
		}
		buf = append(buf, '-')
	}

	buf = append(buf, "\x1b\\"...)
	return buf
}

// stripLine run-length encodes one color's bit pattern across a
// six-pixel strip. Returns nil if the color is absent from the strip.
func stripLine(idx [][]int16, width, stripY, stripH int, color int16) []byte {
	var out []byte
	present := false

	runCh := byte(0)
	runLen := 0
	flush := func() {
		if runLen == 0 {
			return
		}
		if runLen > 3 {
			out = append(out, '!')
			out = append(out, strconv.Itoa(runLen)...)
			out = append(out, runCh)
		} else {
			for i := 0; i < runLen; i++ {
				out = append(out, runCh)
			}
		}
		runLen = 0
	}

	for x := 0; x < width; x++ {
		bits := 0
		for dy := 0; dy < stripH; dy++ {
			y := stripY + dy
			if y < len(idx) && x < len(idx[y]) && idx[y][x] == color {
				bits |= 1 << dy
			}
		}
		if bits != 0 {
			present = true
		}
		ch := byte('?' + bits)
		if runLen > 0 && ch == runCh {
			runLen++
			continue
		}
		flush()
		runCh = ch
		runLen = 1
	}
	flush()

	if !present {
		return nil
	}
	// Trailing empty columns are dead weight; the terminal pads with
	// background anyway.
	for len(out) > 0 && out[len(out)-1] == '?' {
		out = out[:len(out)-1]
	}
	return out
}
