package app

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	dpi      = 120.0
	fontSize = 10.0
)

// annotator draws text labels onto the map. It renders with a TTF
// font when one was provided and falls back to the built-in bitmap
// face otherwise.
type annotator struct {
	fontFace font.Face
}

func newAnnotator(fontFile string) (*annotator, error) {
	if fontFile == "" {
		return &annotator{fontFace: basicfont.Face7x13}, nil
	}

	data, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}
	parsedFont, err := freetype.ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &annotator{
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

// drawString draws label with its baseline starting at (x, y).
func (a *annotator) drawString(img *image.RGBA, x, y int, label string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: a.fontFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func (a *annotator) measure(label string) int {
	return font.MeasureString(a.fontFace, label).Round()
}

func (a *annotator) height() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}
