package compose

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/animequotestudio/studio/pkg/models"
)

const (
	smallWatermarkSize    = 18
	smallWatermarkAlpha   = 178 // ~0.7
	smallWatermarkPadding = 20

	fullWatermarkSize  = 64
	fullWatermarkAlpha = 46 // ~0.18
	fullWatermarkAngle = -math.Pi / 6
)

// drawWatermark renders the plan's watermark level onto the card. "none"
// renders nothing, "small" a high-opacity corner mark, "full" a large
// low-opacity mark rotated about the canvas center.
func (c *Composer) drawWatermark(img *image.RGBA, level models.WatermarkLevel) error {
	switch level {
	case models.WatermarkNone:
		return nil
	case models.WatermarkSmall:
		return c.drawSmallWatermark(img)
	default:
		return c.drawFullWatermark(img)
	}
}

func (c *Composer) drawSmallWatermark(img *image.RGBA) error {
	face, err := c.face(c.bold, smallWatermarkSize)
	if err != nil {
		return err
	}
	col := color.NRGBA{R: 255, G: 255, B: 255, A: smallWatermarkAlpha}
	x := c.cfg.CanvasWidth - smallWatermarkPadding
	y := c.cfg.CanvasHeight - smallWatermarkPadding
	drawTextRightAligned(img, face, c.cfg.WatermarkText, x, y, col)
	return nil
}

func (c *Composer) drawFullWatermark(img *image.RGBA) error {
	face, err := c.face(c.bold, fullWatermarkSize)
	if err != nil {
		return err
	}

	// Render the mark into its own layer, then rotate that layer onto
	// the card center.
	metrics := face.Metrics()
	width := font.MeasureString(face, c.cfg.WatermarkText).Ceil()
	height := metrics.Ascent.Ceil() + metrics.Descent.Ceil()
	layer := image.NewRGBA(image.Rect(0, 0, width, height))

	col := color.NRGBA{R: 255, G: 255, B: 255, A: fullWatermarkAlpha}
	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(metrics.Ascent.Ceil())},
	}
	d.DrawString(c.cfg.WatermarkText)

	cx := float64(c.cfg.CanvasWidth) / 2
	cy := float64(c.cfg.CanvasHeight) / 2
	sw := float64(width) / 2
	sh := float64(height) / 2
	cos := math.Cos(fullWatermarkAngle)
	sin := math.Sin(fullWatermarkAngle)

	// Affine map: rotate the layer about its center, then translate the
	// layer center onto the canvas center.
	m := f64.Aff3{
		cos, -sin, cx - cos*sw + sin*sh,
		sin, cos, cy - sin*sw - cos*sh,
	}
	draw.BiLinear.Transform(img, m, layer, layer.Bounds(), draw.Over, nil)
	return nil
}
