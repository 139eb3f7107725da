// Package layout maps block line ranges to screen rectangles.
//
// Position is a pure function of the block, the viewport metadata, and
// the fold table. No block-specific state is kept, so recomputing
// after any metadata or fold change is always correct; there is
// nothing to go stale.
package layout

import "github.com/dshills/termart/internal/render/core"

// Position computes the screen rectangle for a block. The second
// return is false when the block is not visible: entirely above or
// below the viewport, hidden by layout overflow, or collapsed away by
// a fold.
func Position(b core.Block, md core.Metadata, folds []core.Fold) (core.Rect, bool) {
	line := b.LineRange.Start
	rows := b.Rows()

	// A block starting inside a closed fold collapses to the fold's
	// marker line.
	if f, ok := core.FoldAt(folds, line); ok {
		line = f.Start
		rows = 1
	}

	cols := md.Cols - md.OriginCol
	if cols <= 0 || md.Rows <= 0 {
		return core.Rect{}, false
	}

	// Rows on screen available below the origin row.
	avail := md.Rows - md.OriginRow + 1
	if avail <= 0 {
		return core.Rect{}, false
	}

	// Screen offset of the block's first line, with lines hidden by
	// folds between the viewport top and the block collapsed out.
	offset := line - md.TopLine
	if line > md.TopLine {
		offset -= core.HiddenLinesBetween(folds, md.TopLine, line)
	}

	if offset+rows <= 0 {
		return core.Rect{}, false // entirely above the viewport
	}
	if offset >= avail || line > md.BottomLine {
		return core.Rect{}, false // entirely below the viewport
	}

	cropTop := 0
	if offset < 0 {
		cropTop = -offset
		offset = 0
	}
	cropBottom := 0
	if over := offset + (rows - cropTop) - avail; over > 0 {
		cropBottom = over
	}

	visible := rows - cropTop - cropBottom
	if visible <= 0 {
		return core.Rect{}, false
	}

	return core.Rect{
		Row:        offset + md.OriginRow,
		Col:        md.OriginCol + 1,
		Rows:       visible,
		Cols:       cols,
		CropTop:    cropTop,
		CropBottom: cropBottom,
	}, true
}
