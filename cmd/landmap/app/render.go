package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	ringLabelPad = 4
	landingDotR  = 4
	targetCrossR = 6
)

var (
	ringColor   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	targetColor = color.Black
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int
	Left   int
	Bottom int // Space for information bar
	Right  int
}

// PlotLanding is a landing projected onto the local east/north plane
// around the plot origin, in meters.
type PlotLanding struct {
	Subtest     string
	East, North float64
	Distance    float64
}

// PlotTarget is a recovery target projected onto the same plane.
type PlotTarget struct {
	East, North float64
}

// MapData holds everything a single rendered map needs.
type MapData struct {
	RunUID   string
	Landings []PlotLanding
	Targets  []PlotTarget

	// Extent is the largest absolute east/north coordinate across
	// all points, in meters. Controls the plot scale.
	Extent float64

	// MaxDistance is the worst landing distance, in meters.
	// Controls the color ramp.
	MaxDistance float64
}

// RenderConfig holds all configuration options for map visualization
type RenderConfig struct {
	ColorTheme ColorTheme
	Size       int    // Plot area size in pixels, both axes
	FontFile   string // Optional TTF font for labels

	BorderConfig BorderConfig
}

// MapRenderer draws landing points, recovery targets and distance
// rings onto a square local-plane plot.
type MapRenderer struct {
	config RenderConfig
	mapper *DistanceMapper
}

// NewMapRenderer creates a new map renderer with the given configuration
func NewMapRenderer(config RenderConfig) (*MapRenderer, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("invalid plot size %d", config.Size)
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &MapRenderer{config: config}, nil
}

// Render creates an image of the landing map with annotations
func (r *MapRenderer) Render(data *MapData) (*image.RGBA, error) {
	fullWidth := r.config.Size + r.config.BorderConfig.Left + r.config.BorderConfig.Right
	fullHeight := r.config.Size + r.config.BorderConfig.Top + r.config.BorderConfig.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.mapper = NewDistanceMapper(r.config.ColorTheme, data.MaxDistance)

	ann, err := newAnnotator(r.config.FontFile)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	// Leave a margin so edge points do not touch the border.
	extent := data.Extent * 1.1
	if extent <= 0 {
		extent = 1
	}
	scale := float64(r.config.Size) / (2 * extent)
	centerX := r.config.BorderConfig.Left + r.config.Size/2
	centerY := r.config.BorderConfig.Top + r.config.Size/2

	// East grows right, north grows up.
	project := func(east, north float64) (int, int) {
		return centerX + int(east*scale), centerY - int(north*scale)
	}

	r.drawRings(img, ann, extent, scale, centerX, centerY)

	for _, target := range data.Targets {
		x, y := project(target.East, target.North)
		drawCross(img, x, y, targetCrossR, targetColor)
	}

	for _, landing := range data.Landings {
		x, y := project(landing.East, landing.North)
		drawFilledCircle(img, x, y, landingDotR, r.mapper.GetColor(landing.Distance))
	}

	if err = r.drawInfoBar(img, ann, data); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

// drawRings draws concentric distance rings around the plot center
// with a label on the east axis.
func (r *MapRenderer) drawRings(img *image.RGBA, ann *annotator, extent, scale float64, centerX, centerY int) {
	step := calculateNiceDistanceStep(extent)

	for d := step; d <= extent; d += step {
		radius := d * scale
		drawCircle(img, centerX, centerY, int(radius), ringColor)

		label := formatDistance(d)
		ann.drawString(img, centerX+int(radius)+ringLabelPad, centerY-ringLabelPad, label, ringColor)
	}
}

func (r *MapRenderer) drawInfoBar(img *image.RGBA, ann *annotator, data *MapData) error {
	info := fmt.Sprintf("Run %s; %d landings; worst %s",
		data.RunUID, len(data.Landings), formatDistance(data.MaxDistance))

	metrics := ann.height()
	textY := img.Bounds().Max.Y - (r.config.BorderConfig.Bottom-metrics)/2
	ann.drawString(img, r.config.BorderConfig.Left, textY, info, color.Black)
	return nil
}

// Helper functions

func drawCircle(img *image.RGBA, cx, cy, radius int, c color.Color) {
	if radius <= 0 {
		return
	}

	// Enough angular resolution for a closed one-pixel outline.
	steps := 8 * radius
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(float64(radius)*math.Cos(angle))
		y := cy + int(float64(radius)*math.Sin(angle))
		img.Set(x, y, c)
	}
}

func drawFilledCircle(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawCross(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for d := -radius; d <= radius; d++ {
		img.Set(cx+d, cy, c)
		img.Set(cx, cy+d, c)
	}
}

func calculateNiceDistanceStep(extent float64) float64 {
	// Standard step sizes in meters
	steps := []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1_000, 2_000, 5_000}

	targetStep := extent / 4 // Aim for about 4 rings

	for _, step := range steps {
		if step >= targetStep {
			return step
		}
	}
	return steps[len(steps)-1]
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%s km", humanize.FtoaWithDigits(meters/1000, 1))
	}
	return fmt.Sprintf("%s m", humanize.FtoaWithDigits(meters, 1))
}
