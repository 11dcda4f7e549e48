// Package compose renders quotes into 1200x630 PNG social cards: gradient
// background, wrapped quote text with dynamic font sizing, attribution,
// and a plan-dependent watermark.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/animequotestudio/studio/internal/catalog"
	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/pkg/models"
)

const (
	attributionNameSize  = 26
	attributionTitleSize = 22
	attributionNameGap   = 56
	attributionTitleGap  = 92
)

// Composer renders quote cards
type Composer struct {
	cfg        config.StudioConfig
	quoteFonts map[int]*opentype.Font
	regular    *opentype.Font
	bold       *opentype.Font
}

// NewComposer parses the embedded fonts and returns a ready composer
func NewComposer(cfg config.StudioConfig) (*Composer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse italic font: %w", err)
	}

	// Catalog font ids map onto the embedded families: 1 "Serif Classic"
	// renders italic, 2 "Modern Sans" regular, 3 "Bold Impact" bold.
	return &Composer{
		cfg: cfg,
		quoteFonts: map[int]*opentype.Font{
			1: italic,
			2: regular,
			3: bold,
		},
		regular: regular,
		bold:    bold,
	}, nil
}

// Compose renders the quote with the given catalog selection and plan.
// The caller must precondition on a selected quote; a nil quote is an
// error, every other lookup falls back to defaults instead of failing.
func (c *Composer) Compose(quote *models.Quote, bg catalog.Background, fnt catalog.Font, p models.PlanDescriptor) (*image.RGBA, error) {
	if quote == nil {
		return nil, fmt.Errorf("no quote selected")
	}

	w, h := c.cfg.CanvasWidth, c.cfg.CanvasHeight
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	first, second := gradientStops(bg.CSS)
	fillGradient(img, first, second)

	quoteFont := c.quoteFontFor(fnt)
	text := `"` + quote.QuoteText + `"`
	maxWidth := w - 2*c.cfg.MarginX

	// Dynamic font sizing: shrink until the wrap fits MaxLines or the
	// floor wins. The floor wins for very long quotes.
	size := c.cfg.MaxFontSize
	lines, err := c.wrap(quoteFont, text, size, maxWidth)
	if err != nil {
		return nil, err
	}
	for len(lines) > c.cfg.MaxLines && size > c.cfg.MinFontSize {
		size -= c.cfg.FontSizeStep
		lines, err = c.wrap(quoteFont, text, size, maxWidth)
		if err != nil {
			return nil, err
		}
	}

	face, err := c.face(quoteFont, size)
	if err != nil {
		return nil, err
	}

	lineAdvance := size + c.cfg.LineSpacing
	startY := h/3 - ((len(lines)-1)*lineAdvance)/2
	for i, ln := range lines {
		drawTextCentered(img, face, ln, w/2, startY+i*lineAdvance, color.White)
	}

	if err := c.drawAttribution(img, quote, startY+len(lines)*lineAdvance); err != nil {
		return nil, err
	}

	// Watermark is drawn last, so in full mode it sits on top of the
	// quote text. That matches the shipped behavior.
	if err := c.drawWatermark(img, p.Watermark); err != nil {
		return nil, err
	}

	return img, nil
}

// EncodePNG serializes a composed card to PNG bytes
func (c *Composer) EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download filename for a quote export
func Filename(quoteID int64) string {
	return fmt.Sprintf("quote-%d.png", quoteID)
}

func (c *Composer) quoteFontFor(fnt catalog.Font) *opentype.Font {
	if f, ok := c.quoteFonts[fnt.ID]; ok {
		return f
	}
	return c.regular
}

func (c *Composer) face(f *opentype.Font, size int) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return face, nil
}

// wrap greedily packs words into lines no wider than maxWidth, measured
// in the quote font at the candidate size. A single word wider than
// maxWidth still becomes its own line.
func (c *Composer) wrap(f *opentype.Font, text string, size, maxWidth int) ([]string, error) {
	face, err := c.face(f, size)
	if err != nil {
		return nil, err
	}
	return wrapWords(face, text, maxWidth), nil
}

func (c *Composer) drawAttribution(img *image.RGBA, quote *models.Quote, afterQuoteY int) error {
	if quote.CharacterName != "" {
		face, err := c.face(c.bold, attributionNameSize)
		if err != nil {
			return err
		}
		drawTextCentered(img, face, "— "+quote.CharacterName, c.cfg.CanvasWidth/2, afterQuoteY+attributionNameGap, color.White)
	}
	if quote.AnimeTitle != "" {
		face, err := c.face(c.regular, attributionTitleSize)
		if err != nil {
			return err
		}
		drawTextCentered(img, face, quote.AnimeTitle, c.cfg.CanvasWidth/2, afterQuoteY+attributionTitleGap, color.White)
	}
	return nil
}

func wrapWords(face font.Face, text string, maxWidth int) []string {
	var lines []string
	var line string
	for _, w := range splitWords(text) {
		test := w
		if line != "" {
			test = line + " " + w
		}
		if font.MeasureString(face, test).Ceil() > maxWidth {
			if line != "" {
				lines = append(lines, line)
			}
			line = w
		} else {
			line = test
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if r == ' ' {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

func drawTextCentered(img *image.RGBA, face font.Face, text string, centerX, baselineY int, col color.Color) {
	width := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(centerX) - width/2, Y: fixed.I(baselineY)},
	}
	d.DrawString(text)
}

func drawTextRightAligned(img *image.RGBA, face font.Face, text string, rightX, baselineY int, col color.Color) {
	width := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(rightX) - width, Y: fixed.I(baselineY)},
	}
	d.DrawString(text)
}
