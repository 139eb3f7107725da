package sixel

import (
	"image/color"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// The fixed palette is the xterm extended range: a 6x6x6 color cube
// followed by a 24-step gray ramp. Sixel color registers are defined
// per sequence, so register numbers are simply palette indices.
const paletteSize = 240

var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

var (
	paletteOnce sync.Once
	paletteRGB  [paletteSize]color.RGBA
	paletteLab  [paletteSize]colorful.Color
)

func initPalette() {
	i := 0
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				paletteRGB[i] = color.RGBA{R: cubeLevels[r], G: cubeLevels[g], B: cubeLevels[b], A: 255}
				i++
			}
		}
	}
	for g := 0; g < 24; g++ {
		v := uint8(8 + 10*g)
		paletteRGB[i] = color.RGBA{R: v, G: v, B: v, A: 255}
		i++
	}
	for j, c := range paletteRGB {
		paletteLab[j] = colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	}
}

// nearestIndex quantizes an opaque color to the fixed palette. The
// cube and gray-ramp candidates are computed directly, then the
// perceptually closer of the two wins.
func nearestIndex(r, g, b uint8) int {
	cube := 36*cubeIndex(r) + 6*cubeIndex(g) + cubeIndex(b)

	gray := (int(r) + int(g) + int(b)) / 3
	gi := (gray - 8 + 5) / 10
	if gi < 0 {
		gi = 0
	}
	if gi > 23 {
		gi = 23
	}
	grayIdx := 216 + gi

	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	if c.DistanceLab(paletteLab[cube]) <= c.DistanceLab(paletteLab[grayIdx]) {
		return cube
	}
	return grayIdx
}

// cubeIndex returns the nearest 6-level cube index for one channel.
func cubeIndex(v uint8) int {
	best, bestDist := 0, 1<<10
	for i, l := range cubeLevels {
		d := int(v) - int(l)
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// registerDef returns the sixel color definition percentages for a
// palette index. Sixel RGB parameters range 0-100.
func registerDef(idx int) (r, g, b int) {
	c := paletteRGB[idx]
	return int(c.R) * 100 / 255, int(c.G) * 100 / 255, int(c.B) * 100 / 255
}
