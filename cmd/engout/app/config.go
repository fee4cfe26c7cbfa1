package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Sim      SimConfig      `yaml:"sim"`
	Runner   RunnerConfig   `yaml:"runner"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
	Seed     int64  `yaml:"seed"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level '%s': %w", s.LogLevel, err)
	}
	return level, nil
}

// Duration wraps time.Duration so YAML values like "250ms" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// SimConfig represents the simulated vehicle settings
type SimConfig struct {
	Step          Duration `yaml:"step"`
	MissionLength int      `yaml:"missionLength"`
}

// RunnerConfig represents scenario runner settings
type RunnerConfig struct {
	AbortOnFailure bool     `yaml:"abortOnFailure"`
	RandomHeadings int      `yaml:"randomHeadings"`
	PollInterval   Duration `yaml:"pollInterval"`
}

// ScenarioConfig represents mission targets and landing expectations
type ScenarioConfig struct {
	Rally            *PointConfig `yaml:"rally"`
	Guided           *PointConfig `yaml:"guided"`
	MinDistance      float64      `yaml:"minDistance"`
	MaxDistance      float64      `yaml:"maxDistance"`
	IgnoreParameters []string     `yaml:"ignoreParameters"`
}

// PointConfig represents a geographic point
type PointConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// Location converts the point to a vehicle location.
func (p *PointConfig) Location() vehicle.Location {
	return vehicle.Location{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Altitude:  p.Altitude,
	}
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and parses the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	if (config.Scenario.Rally == nil) != (config.Scenario.Guided == nil) {
		return nil, fmt.Errorf("scenario rally and guided points must be set together")
	}
	if config.Scenario.MinDistance < 0 || config.Scenario.MaxDistance < 0 {
		return nil, fmt.Errorf("scenario distances must not be negative")
	}
	if config.Scenario.MaxDistance > 0 && config.Scenario.MinDistance > config.Scenario.MaxDistance {
		return nil, fmt.Errorf("scenario minDistance exceeds maxDistance")
	}

	return &config, nil
}
