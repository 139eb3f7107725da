// Package core provides shared types for the render subsystem.
// This package breaks import cycles between the scanner, layout,
// pipeline, and scheduler packages.
package core

import "fmt"

// Kind identifies the renderable content type of a block.
type Kind uint8

const (
	// KindMath is a fenced LaTeX math region.
	KindMath Kind = iota

	// KindImage is a markdown image link pointing at a raster file.
	KindImage

	// KindPlot is gnuplot source, either fenced or linked as a .plt file.
	KindPlot

	// KindTeX is a full LaTeX snippet, either fenced or linked as a .tex file.
	KindTeX
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindMath:
		return "math"
	case KindImage:
		return "image"
	case KindPlot:
		return "plot"
	case KindTeX:
		return "tex"
	default:
		return "unknown"
	}
}

// LineRange is an inclusive range of 1-based buffer lines.
type LineRange struct {
	Start int
	End   int
}

// Height returns the number of lines covered by the range.
func (r LineRange) Height() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains returns true if the line falls inside the range.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Overlaps returns true if the two ranges share at least one line.
func (r LineRange) Overlaps(o LineRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// ByteRange is a half-open byte range [Start, End) into the buffer text.
type ByteRange struct {
	Start int
	End   int
}

// Block is one parsed renderable region of buffer text.
//
// Identity is positional (LineRange) but content equality is the
// fingerprint, so a block is superseded rather than mutated when its
// source changes.
type Block struct {
	// ID is the content fingerprint: kind plus normalized source.
	ID string

	// Kind is the renderable content type.
	Kind Kind

	// Source is the fenced source text, or the link target when
	// FromFile is set.
	Source string

	// FromFile indicates Source is a filesystem path rather than
	// inline source text.
	FromFile bool

	ByteRange ByteRange
	LineRange LineRange

	// HeightHint is the requested on-screen height in rows. Zero means
	// derive from LineRange.
	HeightHint int
}

// Rows returns the block's on-screen height in rows.
func (b Block) Rows() int {
	if b.HeightHint > 0 {
		return b.HeightHint
	}
	return b.LineRange.Height()
}

// Metadata is the viewport snapshot reported by the host. It is
// replaced atomically on every update; no partial state is observable.
type Metadata struct {
	// TopLine and BottomLine are the first and last visible buffer
	// lines (1-based, inclusive).
	TopLine    int
	BottomLine int

	// Rows and Cols are the window size in cells.
	Rows int
	Cols int

	// CursorLine is the buffer line the cursor is on.
	CursorLine int

	// OriginRow is the 1-based screen row of the first visible buffer
	// line. OriginCol is the gutter width in cells; graphics start at
	// column OriginCol+1.
	OriginRow int
	OriginCol int
}

// NewMetadata returns a minimal valid metadata snapshot.
func NewMetadata() Metadata {
	return Metadata{TopLine: 1, BottomLine: 1, Rows: 1, Cols: 1, CursorLine: 1, OriginRow: 1}
}

// Visible returns the visible buffer line range.
func (m Metadata) Visible() LineRange {
	return LineRange{Start: m.TopLine, End: m.BottomLine}
}

// Fold is a closed fold region: Start is the marker line that stays
// visible, lines Start+1..End are hidden.
type Fold struct {
	Start int
	End   int
}

// Rect is a screen-space rectangle in 1-based cell coordinates, with
// crop hints for blocks that cross the viewport border.
type Rect struct {
	Row  int
	Col  int
	Rows int
	Cols int

	// CropTop and CropBottom are rows of the block's bitmap hidden
	// above and below the viewport border.
	CropTop    int
	CropBottom int
}

// String returns a compact representation for logging.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.Cols, r.Rows, r.Row, r.Col)
}

// NormalizeFolds sorts folds by start line and drops entries that are
// empty or overlap an earlier fold. A buffer line belongs to at most
// one fold in the result.
func NormalizeFolds(folds []Fold) []Fold {
	if len(folds) == 0 {
		return nil
	}
	out := make([]Fold, 0, len(folds))
	out = append(out, folds...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Start < out[j-1].Start; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	dst := out[:0]
	lastEnd := 0
	for _, f := range out {
		if f.End <= f.Start || f.Start <= lastEnd {
			continue
		}
		dst = append(dst, f)
		lastEnd = f.End
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

// FoldAt returns the fold containing the given line, if any.
func FoldAt(folds []Fold, line int) (Fold, bool) {
	for _, f := range folds {
		if line >= f.Start && line <= f.End {
			return f, true
		}
		if f.Start > line {
			break
		}
	}
	return Fold{}, false
}

// FoldsEqual reports whether two normalized fold tables are identical.
func FoldsEqual(a, b []Fold) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HiddenLinesBetween returns the number of buffer lines hidden by
// closed folds in the half-open line interval [from, to). Marker lines
// stay visible, so each fold hides End-Start lines.
func HiddenLinesBetween(folds []Fold, from, to int) int {
	hidden := 0
	for _, f := range folds {
		if f.End < from || f.Start >= to {
			continue
		}
		lo := f.Start + 1
		if lo < from {
			lo = from
		}
		hi := f.End
		if hi >= to {
			hi = to - 1
		}
		if hi >= lo {
			hidden += hi - lo + 1
		}
	}
	return hidden
}
