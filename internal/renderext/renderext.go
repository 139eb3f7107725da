// Package renderext implements the external renderer collaborator: it
// turns block source into bitmaps by driving latex, dvisvgm, and
// gnuplot subprocesses, or by decoding linked image files.
//
// Intermediate artifacts (tex, dvi, svg) live in a directory keyed by
// fingerprint, so identical content renders once per machine, not once
// per process.
package renderext

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for linked image files.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/dshills/termart/internal/applog"
	"github.com/dshills/termart/internal/config"
	"github.com/dshills/termart/internal/render/core"
)

const (
	mathHeader = "\\documentclass[20pt, preview]{standalone}\n\\usepackage{amsmath}\\usepackage{amsfonts}\n\\begin{document}\n$$\n"
	mathFooter = "$$\n\\end{document}\n"

	texHeader = "\\documentclass[20pt, preview]{standalone}\n\\usepackage{amsmath}\\usepackage{amsfonts}\n\\begin{document}\n"
	texFooter = "\\end{document}\n"
)

// Runner renders blocks via external tools.
type Runner struct {
	cfg config.RenderConfig
	log *applog.Logger
}

// New creates a runner and its artifact directory.
func New(cfg config.RenderConfig, log *applog.Logger) (*Runner, error) {
	if log == nil {
		log = applog.Nop()
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = filepath.Join(os.TempDir(), "termart")
	}
	if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &Runner{cfg: cfg, log: log}, nil
}

// Render converts one block to a bitmap. Failures come back as
// *RenderError with a message fit for display in the host.
func (r *Runner) Render(ctx context.Context, b core.Block) (image.Image, error) {
	if b.FromFile {
		return r.renderFile(ctx, b)
	}

	switch b.Kind {
	case core.KindMath:
		return r.renderLatex(ctx, b.ID, mathHeader+b.Source+mathFooter)
	case core.KindTeX:
		return r.renderLatex(ctx, b.ID, texHeader+b.Source+texFooter)
	case core.KindPlot:
		return r.renderPlot(ctx, b.ID, b.Source)
	default:
		return nil, &RenderError{Message: fmt.Sprintf("no renderer for %s blocks", b.Kind)}
	}
}

// renderFile routes a linked file by extension.
func (r *Runner) renderFile(ctx context.Context, b core.Block) (image.Image, error) {
	path := b.Source
	if _, err := os.Stat(path); err != nil {
		return nil, &RenderError{Message: fmt.Sprintf("file not found: %s", path)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tex":
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("read %s: %v", path, err)}
		}
		return r.renderLatex(ctx, b.ID, string(src))
	case ".plt":
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("read %s: %v", path, err)}
		}
		return r.renderPlot(ctx, b.ID, string(src))
	case ".svg":
		return rasterizeSVG(path)
	default:
		return decodeImage(path)
	}
}

// decodeImage decodes a raster file with the registered decoders.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &RenderError{Message: fmt.Sprintf("open %s: %v", path, err)}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &RenderError{Message: fmt.Sprintf("invalid image %s: %v", path, err)}
	}
	return img, nil
}
