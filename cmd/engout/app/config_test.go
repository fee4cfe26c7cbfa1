package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("Writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
  seed: 42
sim:
  step: 1s
  missionLength: 7
runner:
  abortOnFailure: true
  randomHeadings: 2
  pollInterval: 1ms
scenario:
  rally:
    latitude: 36.8164241
    longitude: -2.868918
  guided:
    latitude: 36.8192676
    longitude: -2.8719136
  maxDistance: 50
  ignoreParameters: [STAT, BARO]
storage:
  dataDirectory: data
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	level, err := config.Settings.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", level)
	}
	if config.Settings.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", config.Settings.Seed)
	}
	if time.Duration(config.Sim.Step) != time.Second {
		t.Errorf("Expected 1s sim step, got %v", time.Duration(config.Sim.Step))
	}
	if !config.Runner.AbortOnFailure || time.Duration(config.Runner.PollInterval) != time.Millisecond {
		t.Errorf("Unexpected runner config: %+v", config.Runner)
	}
	if config.Scenario.Rally == nil || config.Scenario.Rally.Latitude != 36.8164241 {
		t.Errorf("Unexpected rally point: %+v", config.Scenario.Rally)
	}
	if got := config.Scenario.Guided.Location(); got.Longitude != -2.8719136 {
		t.Errorf("Unexpected guided location: %+v", got)
	}
	if len(config.Scenario.IgnoreParameters) != 2 {
		t.Errorf("Unexpected ignore list: %v", config.Scenario.IgnoreParameters)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "settings: {}\n")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	level, err := config.Settings.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != slog.LevelInfo {
		t.Errorf("Expected info level by default, got %v", level)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "sim:\n  step: fast\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for a malformed duration")
	}
}

func TestLoadConfigRejectsLoneTarget(t *testing.T) {
	path := writeConfig(t, `
scenario:
  rally:
    latitude: 1.0
    longitude: 2.0
`)

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for a rally point without a guided point")
	}
}

func TestLoadConfigRejectsInvertedBand(t *testing.T) {
	path := writeConfig(t, `
scenario:
  minDistance: 100
  maxDistance: 50
`)

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for minDistance above maxDistance")
	}
}
