package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"

	"github.com/cgreigagts/engout-harness/internal/storage"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	run, err := resolveRun(ctx, store, config.RunID)
	if err != nil {
		return err
	}

	landings, err := store.Landings(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("reading landings: %w", err)
	}
	if len(landings) == 0 {
		return fmt.Errorf("run %s has no recorded landings", run.RunUID)
	}

	data := buildMapData(run, landings)

	logger.Info("rendering landing map",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("size", config.Size),
		),
		slog.Group("run",
			slog.String("uid", run.RunUID),
			slog.Int("landings", len(data.Landings)),
		))

	renderer, err := NewMapRenderer(RenderConfig{
		ColorTheme: config.Theme,
		Size:       config.Size,
		FontFile:   config.FontFile,
	})
	if err != nil {
		return fmt.Errorf("creating map renderer: %w", err)
	}

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

// resolveRun picks the requested run, or the most recent one when no
// run id was given.
func resolveRun(ctx context.Context, store *storage.Store, runID int64) (*storage.RunData, error) {
	if runID > 0 {
		run, err := store.Run(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("reading run %d: %w", runID, err)
		}
		if run == nil {
			return nil, fmt.Errorf("run %d does not exist", runID)
		}
		return run, nil
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded in the database")
	}
	return runs[len(runs)-1], nil
}

// buildMapData projects the landings and their targets onto a local
// east/north plane centered on the mean target point.
func buildMapData(run *storage.RunData, landings []storage.LandingData) *MapData {
	var origin vehicle.Location
	for _, l := range landings {
		origin.Latitude += l.TargetLatitude
		origin.Longitude += l.TargetLongitude
	}
	origin.Latitude /= float64(len(landings))
	origin.Longitude /= float64(len(landings))

	data := MapData{RunUID: run.RunUID}
	seen := make(map[vehicle.Location]struct{})

	for _, l := range landings {
		loc := vehicle.Location{Latitude: l.Latitude, Longitude: l.Longitude}
		east, north := loc.LocalOffset(origin)

		data.Landings = append(data.Landings, PlotLanding{
			Subtest:  l.Subtest,
			East:     east,
			North:    north,
			Distance: l.DistanceM,
		})
		data.Extent = math.Max(data.Extent, math.Max(math.Abs(east), math.Abs(north)))
		data.MaxDistance = math.Max(data.MaxDistance, l.DistanceM)

		target := vehicle.Location{Latitude: l.TargetLatitude, Longitude: l.TargetLongitude}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}

		east, north = target.LocalOffset(origin)
		data.Targets = append(data.Targets, PlotTarget{East: east, North: north})
		data.Extent = math.Max(data.Extent, math.Max(math.Abs(east), math.Abs(north)))
	}

	return &data
}
