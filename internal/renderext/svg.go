package renderext

import (
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// maxSVGDim caps the rasterization size; the encoder scales down to
// the block rectangle anyway.
const maxSVGDim = 2048

// rasterizeSVG renders an svg file to an RGBA bitmap at its intrinsic
// size.
func rasterizeSVG(path string) (image.Image, error) {
	icon, err := oksvg.ReadIcon(path, oksvg.WarnErrorMode)
	if err != nil {
		return nil, &RenderError{Message: fmt.Sprintf("invalid svg %s: %v", path, err)}
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = 512, 512
	}
	if w > maxSVGDim {
		h = h * maxSVGDim / w
		w = maxSVGDim
	}
	if h > maxSVGDim {
		w = w * maxSVGDim / h
		h = maxSVGDim
	}
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return rgba, nil
}
