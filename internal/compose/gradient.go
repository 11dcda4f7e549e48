package compose

import (
	"image"
	"image/color"
	"regexp"
	"strconv"
)

var hexColorRe = regexp.MustCompile(`#[0-9a-fA-F]{6}`)

// Fallback pair used when a background descriptor carries fewer than two
// hex stops.
var (
	defaultFirstStop  = mustParseHex("#4f46e5")
	defaultSecondStop = mustParseHex("#6366f1")
)

// gradientStops extracts the first two hex colors from a CSS gradient
// descriptor. Descriptors with three or more stops only contribute their
// first two.
func gradientStops(css string) (color.RGBA, color.RGBA) {
	hexes := hexColorRe.FindAllString(css, -1)
	if len(hexes) < 2 {
		return defaultFirstStop, defaultSecondStop
	}
	return mustParseHex(hexes[0]), mustParseHex(hexes[1])
}

// fillGradient fills the image with a linear gradient between two stops
// along the top-left to bottom-right diagonal.
func fillGradient(img *image.RGBA, first, second color.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	denom := float64(w*w + h*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float64(x*w+y*h) / denom
			img.SetRGBA(b.Min.X+x, b.Min.Y+y, lerpRGB(first, second, t))
		}
	}
}

func lerpRGB(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 255,
	}
}

func mustParseHex(s string) color.RGBA {
	r, _ := strconv.ParseUint(s[1:3], 16, 8)
	g, _ := strconv.ParseUint(s[3:5], 16, 8)
	b, _ := strconv.ParseUint(s[5:7], 16, 8)
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
