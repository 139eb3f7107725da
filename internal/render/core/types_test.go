package core

import "testing"

func TestLineRangeHeight(t *testing.T) {
	tests := []struct {
		name string
		r    LineRange
		want int
	}{
		{"single line", LineRange{Start: 5, End: 5}, 1},
		{"multi line", LineRange{Start: 3, End: 7}, 5},
		{"inverted", LineRange{Start: 7, End: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Height(); got != tt.want {
				t.Errorf("Height() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLineRangeOverlaps(t *testing.T) {
	a := LineRange{Start: 5, End: 10}

	if !a.Overlaps(LineRange{Start: 10, End: 12}) {
		t.Error("touching ranges should overlap")
	}
	if a.Overlaps(LineRange{Start: 11, End: 12}) {
		t.Error("disjoint ranges should not overlap")
	}
	if !a.Overlaps(LineRange{Start: 1, End: 20}) {
		t.Error("containing range should overlap")
	}
}

func TestBlockRows(t *testing.T) {
	b := Block{LineRange: LineRange{Start: 2, End: 5}}
	if got := b.Rows(); got != 4 {
		t.Errorf("Rows() = %d, want 4", got)
	}

	b.HeightHint = 10
	if got := b.Rows(); got != 10 {
		t.Errorf("Rows() with hint = %d, want 10", got)
	}
}

func TestNormalizeFolds(t *testing.T) {
	folds := []Fold{
		{Start: 20, End: 30},
		{Start: 5, End: 10},
		{Start: 8, End: 12}, // overlaps the 5-10 fold
		{Start: 15, End: 15}, // empty
	}

	got := NormalizeFolds(folds)
	want := []Fold{{Start: 5, End: 10}, {Start: 20, End: 30}}

	if !FoldsEqual(got, want) {
		t.Errorf("NormalizeFolds() = %v, want %v", got, want)
	}
}

func TestNormalizeFoldsEmpty(t *testing.T) {
	if got := NormalizeFolds(nil); got != nil {
		t.Errorf("NormalizeFolds(nil) = %v, want nil", got)
	}
}

func TestFoldAt(t *testing.T) {
	folds := []Fold{{Start: 5, End: 10}, {Start: 20, End: 30}}

	if _, ok := FoldAt(folds, 4); ok {
		t.Error("line 4 should not be folded")
	}
	if f, ok := FoldAt(folds, 5); !ok || f.Start != 5 {
		t.Error("line 5 should be in the first fold")
	}
	if f, ok := FoldAt(folds, 25); !ok || f.Start != 20 {
		t.Error("line 25 should be in the second fold")
	}
	if _, ok := FoldAt(folds, 31); ok {
		t.Error("line 31 should not be folded")
	}
}

func TestHiddenLinesBetween(t *testing.T) {
	folds := []Fold{{Start: 5, End: 10}}

	tests := []struct {
		name     string
		from, to int
		want     int
	}{
		{"fold fully inside", 1, 20, 5},
		{"interval above fold", 1, 5, 0},
		{"interval below fold", 11, 20, 0},
		{"partial overlap", 8, 20, 3},
		{"marker line only", 5, 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HiddenLinesBetween(folds, tt.from, tt.to); got != tt.want {
				t.Errorf("HiddenLinesBetween(%d, %d) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
