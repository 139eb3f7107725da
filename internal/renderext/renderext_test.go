package renderext

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/termart/internal/config"
	"github.com/dshills/termart/internal/render/core"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := config.Default().Render
	cfg.ArtifactDir = t.TempDir()
	r, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRenderImageFile(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "pic.png")
	writePNG(t, path)

	b := core.Block{ID: "img1", Kind: core.KindImage, Source: path, FromFile: true}
	img, err := r.Render(context.Background(), b)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("bounds = %v, want 4x4", img.Bounds())
	}
}

func TestRenderMissingFile(t *testing.T) {
	r := newTestRunner(t)

	b := core.Block{ID: "img2", Kind: core.KindImage, Source: "/nonexistent/pic.png", FromFile: true}
	_, err := r.Render(context.Background(), b)

	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RenderError", err)
	}
}

func TestRenderSVGFile(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "shape.svg")
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10">
<rect x="0" y="0" width="20" height="10" fill="#ff0000"/>
</svg>`
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		t.Fatal(err)
	}

	b := core.Block{ID: "svg1", Kind: core.KindImage, Source: path, FromFile: true}
	img, err := r.Render(context.Background(), b)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("bounds = %v, want 20x10", img.Bounds())
	}
}

func TestParseLatexLog(t *testing.T) {
	out := `This is pdfTeX
! Undefined control sequence.
l.5 \frobnicate
               x + 1
! Emergency stop.
`
	re := parseLatexLog(out)

	if re.Message != "Undefined control sequence." {
		t.Errorf("message = %q", re.Message)
	}
	if re.Line != 5 {
		t.Errorf("line = %d, want 5", re.Line)
	}
	if re.Detail != "\\frobnicate" {
		t.Errorf("detail = %q", re.Detail)
	}
}

func TestParseLatexLogNoMarkers(t *testing.T) {
	re := parseLatexLog("nothing useful here")

	if re.Message != "latex failed" {
		t.Errorf("message = %q, want generic failure", re.Message)
	}
}

func TestRenderErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  RenderError
		want string
	}{
		{"message only", RenderError{Message: "gnuplot failed"}, "gnuplot failed"},
		{"with line and detail", RenderError{Message: "bad math", Detail: "x+", Line: 3}, "bad math (l.3: x+)"},
		{"with detail", RenderError{Message: "bad svg", Detail: "eof"}, "bad svg (eof)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnknownKindFails(t *testing.T) {
	r := newTestRunner(t)

	b := core.Block{ID: "x", Kind: core.Kind(99), Source: "x"}
	_, err := r.Render(context.Background(), b)
	if err == nil {
		t.Fatal("unknown kind should fail")
	}
}
