package app

import (
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for landing distance
// visualization. Short distances map to the cold end of the scheme,
// long distances to the hot end.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white

	defaultColorMapSize = 256
)

// DistanceMapper provides distance-to-color mapping over a fixed
// distance range using a pre-computed color map.
type DistanceMapper struct {
	colorMap       []color.Color
	size           int
	maxDistance    float64
	metersPerIndex float64
}

// NewDistanceMapper creates a mapper over [0, maxDistance] meters.
func NewDistanceMapper(theme ColorTheme, maxDistance float64) *DistanceMapper {
	if maxDistance <= 0 {
		maxDistance = 1
	}

	m := &DistanceMapper{
		colorMap:       make([]color.Color, defaultColorMapSize),
		size:           defaultColorMapSize,
		maxDistance:    maxDistance,
		metersPerIndex: maxDistance / float64(defaultColorMapSize-1),
	}

	fn := getColorTheme(theme)
	for i := range m.colorMap {
		m.colorMap[i] = fn(float64(i) / float64(m.size-1))
	}
	return m
}

// GetColor returns a color for the given landing distance in meters.
func (m *DistanceMapper) GetColor(distance float64) color.Color {
	index := int(distance / m.metersPerIndex)
	if index < 0 {
		return m.colorMap[0]
	}
	if index >= m.size {
		return m.colorMap[m.size-1]
	}
	return m.colorMap[index]
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space efficiently
func (hsv HSV) RGB() color.Color {
	// Fast path for grayscale
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	// Normalize hue to [0-6)
	h := hsv.H
	if h >= 360 {
		h -= 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default: // case 5:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

// Color theme implementations
func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme:
		return func(d float64) color.Color {
			v := uint8(math.Pow(d, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case ThermalTheme:
		return func(d float64) color.Color {
			if d < 0.33 {
				return color.RGBA{
					R: uint8((d * 3) * 255),
					A: 255,
				}
			}
			if d < 0.66 {
				return color.RGBA{
					R: 255,
					G: uint8(((d - 0.33) * 3) * 255),
					A: 255,
				}
			}
			return color.RGBA{
				R: 255,
				G: 255,
				B: uint8(((d - 0.66) * 3) * 255),
				A: 255,
			}
		}

	default: // ClassicTheme
		return func(d float64) color.Color {
			return HSV{
				H: 240 - (d * 240),
				S: 0.9 + (d * 0.1),
				V: 0.4 + (math.Pow(d, 0.7) * 0.6),
			}.RGB()
		}
	}
}
