package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cgreigagts/engout-harness/internal/report"
	"github.com/cgreigagts/engout-harness/internal/scenario"
	"github.com/cgreigagts/engout-harness/internal/simlink"
	"github.com/cgreigagts/engout-harness/internal/storage"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

const storageDir = "data"

// ErrSubtestsFailed is returned when the run completes but at least
// one subtest failed.
var ErrSubtestsFailed = fmt.Errorf("one or more subtests failed")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	link := createLink(&config.Sim, logger)
	drv := createDriver(link, &config.Runner, logger)
	suite := createSuite(link, drv, &config.Scenario, logger)

	runID := uuid.NewString()
	dbRunID, err := store.CreateRun(ctx, runID, config)
	if err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}

	runner := scenario.NewRunner(link, drv, suite, runnerOptions(config, store, runID, logger)...)

	rep, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	landings, err := store.Landings(ctx, dbRunID)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to read landings back: %s", err.Error()))
	}

	fmt.Println(report.Format(rep, landingsToScenario(landings)))

	if rep.Failed() > 0 {
		return fmt.Errorf("run %s: %w", runID, ErrSubtestsFailed)
	}
	return nil
}

func createLink(config *SimConfig, logger *slog.Logger) *simlink.Link {
	cfg := simlink.DefaultConfig()
	if config.Step > 0 {
		cfg.Step = time.Duration(config.Step)
	}
	if config.MissionLength > 0 {
		cfg.MissionLength = config.MissionLength
	}

	return simlink.New(cfg, simlink.WithLogger(logger))
}

func createDriver(link vehicle.Link, config *RunnerConfig, logger *slog.Logger) *scenario.Driver {
	options := []func(*scenario.Driver){scenario.WithDriverLogger(logger)}
	if config.PollInterval > 0 {
		options = append(options, scenario.WithPollInterval(time.Duration(config.PollInterval)))
	}

	return scenario.NewDriver(link, options...)
}

func createSuite(link vehicle.Link, drv *scenario.Driver, config *ScenarioConfig, logger *slog.Logger) *scenario.Suite {
	options := []func(*scenario.Suite){scenario.WithSuiteLogger(logger)}
	if len(config.IgnoreParameters) > 0 {
		options = append(options, scenario.WithIgnorePrefixes(config.IgnoreParameters))
	}

	return scenario.NewSuite(link, drv, options...)
}

func runnerOptions(config *Config, store *storage.Store, runID string, logger *slog.Logger) []func(*scenario.Runner) {
	options := []func(*scenario.Runner){
		scenario.WithRunnerLogger(logger),
		scenario.WithRecorder(store),
		scenario.WithRunID(runID),
		scenario.WithAbortOnFailure(config.Runner.AbortOnFailure),
	}

	if config.Settings.Seed != 0 {
		options = append(options, scenario.WithRandom(rand.New(rand.NewSource(config.Settings.Seed))))
	}
	if config.Runner.RandomHeadings > 0 {
		options = append(options, scenario.WithRandomHeadings(config.Runner.RandomHeadings))
	}
	if config.Scenario.Rally != nil && config.Scenario.Guided != nil {
		options = append(options, scenario.WithTargets(
			config.Scenario.Rally.Location(), config.Scenario.Guided.Location()))
	}
	if config.Scenario.MaxDistance > 0 {
		options = append(options, scenario.WithDistanceBand(
			config.Scenario.MinDistance, config.Scenario.MaxDistance))
	}

	return options
}

func landingsToScenario(data []storage.LandingData) []scenario.Landing {
	landings := make([]scenario.Landing, len(data))
	for i, l := range data {
		landings[i] = scenario.Landing{
			Subtest:  l.Subtest,
			Location: vehicle.Location{Latitude: l.Latitude, Longitude: l.Longitude},
			Target:   vehicle.Location{Latitude: l.TargetLatitude, Longitude: l.TargetLongitude},
			Distance: l.DistanceM,
		}
	}
	return landings
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("invalid storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("engout_run_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.New(dbPath), nil
}
