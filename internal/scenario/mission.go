package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
	"github.com/cgreigagts/engout-harness/internal/wait"
)

const (
	// missionLegWaypoint is the mission leg at which the scenario
	// arms the failure trigger: by then the aircraft is established
	// at the landing altitude.
	missionLegWaypoint = 4

	// headingTolerance is how close the aircraft must be to the
	// target heading before the engine is killed.
	headingTolerance = 5.0

	// settlePolls is the settling delay granted after the automatic
	// return engages, before a guided diversion is issued.
	settlePolls = 10

	assistTimeoutText = "Q_ASSIST for too long"
	rtlTimeoutText    = "QRTL for too long"
	engineOutText     = "Engine out"
	engineRunningText = "Engine running"

	assistTimeoutParam = "ENGOUT_QAST_TIME"
	rtlTimeoutParam    = "ENGOUT_QRTL_TIME"

	glideSpeedParam = "GLIDE_SPD"
)

// MissionConfig names the parameters of one basic-auto-mission run.
// Constructed per invocation and never shared.
type MissionConfig struct {
	Heading float64          // target heading at which the engine dies
	Target  vehicle.Location // expected landing point
	Guided  bool             // divert in GUIDED instead of using a rally point

	MinDistance float64 // acceptable landing distance band, meters
	MaxDistance float64

	// AssistTimeout and RTLTimeout override the corresponding
	// fallback thresholds (seconds) before arming. At most one may
	// be set per invocation.
	AssistTimeout float64
	RTLTimeout    float64
}

func (c MissionConfig) validate() error {
	if c.AssistTimeout > 0 && c.RTLTimeout > 0 {
		return fmt.Errorf("assist and RTL timeout overrides are mutually exclusive")
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("max distance must be positive")
	}
	if c.MinDistance > c.MaxDistance {
		return fmt.Errorf("min distance %0.f exceeds max distance %0.f", c.MinDistance, c.MaxDistance)
	}
	return nil
}

// Name describes the run the way it shows up in results.
func (c MissionConfig) Name() string {
	switch {
	case c.AssistTimeout > 0:
		return "assist timeout fallback"
	case c.RTLTimeout > 0:
		return "RTL timeout fallback"
	}
	kind := "rally"
	if c.Guided {
		kind = "guided"
	}
	return fmt.Sprintf("engine out at heading %.0f, %s landing at %.6f,%.6f",
		c.Heading, kind, c.Target.Latitude, c.Target.Longitude)
}

// WithSuiteLogger sets the logger for the suite.
func WithSuiteLogger(logger *slog.Logger) func(*Suite) {
	return func(s *Suite) {
		s.logger = logger
	}
}

// WithIgnorePrefixes overrides the volatile parameter-name prefixes
// excluded from the integrity check.
func WithIgnorePrefixes(prefixes []string) func(*Suite) {
	return func(s *Suite) {
		s.ignorePrefixes = prefixes
	}
}

// Suite implements the engine-out mission scenarios on top of a
// driver. It holds no vehicle state of its own; every check re-polls
// the link.
type Suite struct {
	link   vehicle.Link
	drv    *Driver
	logger *slog.Logger

	// Landing is updated after each successful basic mission with
	// the final landed location; the runner persists it.
	lastLanding *Landing

	ignorePrefixes []string
}

// Landing records where a mission ended relative to its target.
type Landing struct {
	Subtest  string
	Location vehicle.Location
	Target   vehicle.Location
	Distance float64
}

// NewSuite creates a scenario suite over the given link and driver.
func NewSuite(link vehicle.Link, drv *Driver, options ...func(*Suite)) *Suite {
	s := Suite{
		link:           link,
		drv:            drv,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		ignorePrefixes: []string{"STAT", "BARO", "SERVO", "Q_P_ACCZ_IMAX"},
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// TakeLanding returns the landing record of the most recent
// successful basic mission, or nil, and clears it.
func (s *Suite) TakeLanding() *Landing {
	landing := s.lastLanding
	s.lastLanding = nil
	return landing
}

// BasicAutoMission flies the scripted mission and kills the engine
// once the aircraft reaches the mission leg and the target heading.
// It then verifies the recovery: automatic return (optionally
// overridden by a guided diversion), the configured fallback text if
// a timeout override is set, disarm on landing, and a final landing
// distance within the configured band.
//
// Sweeping the heading across many values proves the recovery works
// regardless of the aircraft's orientation relative to the wind at
// failure time.
func (s *Suite) BasicAutoMission(ctx context.Context, cfg MissionConfig) error {
	if err := cfg.validate(); err != nil {
		return &PreconditionError{Msg: "invalid mission config", Err: err}
	}

	s.lastLanding = nil
	s.logger.Info("starting basic auto mission",
		slog.Float64("heading", cfg.Heading),
		slog.Bool("guided", cfg.Guided),
		slog.String("target", cfg.Target.String()))

	if err := s.drv.ResetAircraft(ctx); err != nil {
		return err
	}

	if !cfg.Guided {
		if err := s.link.UploadRallyPoints(ctx, []vehicle.Location{cfg.Target}); err != nil {
			return &PreconditionError{Msg: "uploading rally point failed", Err: err}
		}
	}
	if cfg.AssistTimeout > 0 {
		if err := s.link.SetParameter(ctx, assistTimeoutParam, cfg.AssistTimeout); err != nil {
			return &PreconditionError{Msg: "setting assist timeout failed", Err: err}
		}
	}
	if cfg.RTLTimeout > 0 {
		if err := s.link.SetParameter(ctx, rtlTimeoutParam, cfg.RTLTimeout); err != nil {
			return &PreconditionError{Msg: "setting RTL timeout failed", Err: err}
		}
	}

	if err := s.link.SetMode(ctx, vehicle.ModeAuto); err != nil {
		return &PreconditionError{Msg: "changing to AUTO failed", Err: err}
	}
	if err := s.link.Arm(ctx); err != nil {
		return &PreconditionError{Msg: "could not arm", Err: err}
	}
	if err := s.link.SetRC(vehicle.ThrottleChannel, throttleCruise); err != nil {
		return &PreconditionError{Msg: "setting cruise throttle failed", Err: err}
	}

	if err := wait.ForWaypoint(ctx, s.link, missionLegWaypoint, s.drv.opts(s.drv.timeouts.Waypoint)); err != nil {
		return err
	}
	if err := wait.ForHeading(ctx, s.link, cfg.Heading, headingTolerance, s.drv.opts(s.drv.timeouts.Heading)); err != nil {
		return err
	}

	// Subscribe before the fault so no recovery text can slip by
	// between injection and the first poll.
	sub := s.link.SubscribeText()

	if err := s.drv.KillEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine kill command failed", Err: err}
	}

	if cfg.Guided {
		if err := wait.ForMode(ctx, s.link, vehicle.ModeRTL, s.drv.opts(s.drv.timeouts.Mode)); err != nil {
			return err
		}
		s.drv.Settle(ctx, settlePolls)
		if err := s.drv.DivertGuided(ctx, cfg.Target); err != nil {
			return &PreconditionError{Msg: "guided diversion failed", Err: err}
		}
	}

	switch {
	case cfg.AssistTimeout > 0:
		if err := wait.ForText(ctx, s.link, sub, assistTimeoutText, s.drv.opts(s.drv.timeouts.Text)); err != nil {
			return err
		}
	case cfg.RTLTimeout > 0:
		if err := wait.ForText(ctx, s.link, sub, rtlTimeoutText, s.drv.opts(s.drv.timeouts.Text)); err != nil {
			return err
		}
	}

	if err := wait.ForDisarm(ctx, s.link, s.drv.opts(s.drv.timeouts.Disarm)); err != nil {
		return err
	}

	// Distance is always judged against the freshest snapshot, not
	// anything cached during setup.
	snap := s.link.Snapshot()
	distance := snap.Location.DistanceTo(cfg.Target)
	s.logger.Info("landed",
		slog.Float64("distance", distance),
		slog.String("location", snap.Location.String()))

	if distance < cfg.MinDistance || distance > cfg.MaxDistance {
		return Assertf("landed %.1f m from target, outside [%.0f, %.0f]",
			distance, cfg.MinDistance, cfg.MaxDistance)
	}

	s.lastLanding = &Landing{
		Subtest:  cfg.Name(),
		Location: snap.Location,
		Target:   cfg.Target,
		Distance: distance,
	}
	return nil
}

// ParameterIntegrity verifies that injecting and recovering from an
// engine failure leaves the parameter store exactly as it was, apart
// from a known set of volatile prefixes. Changes observed while the
// failure is active are informational; changes that survive the
// recovery are a hard failure.
func (s *Suite) ParameterIntegrity(ctx context.Context) error {
	if err := s.drv.ResetAircraft(ctx); err != nil {
		return err
	}

	before, err := s.link.DownloadParameters(ctx)
	if err != nil {
		return &PreconditionError{Msg: "downloading parameters failed", Err: err}
	}

	if err := s.link.SetMode(ctx, vehicle.ModeAuto); err != nil {
		return &PreconditionError{Msg: "changing to AUTO failed", Err: err}
	}
	if err := s.link.Arm(ctx); err != nil {
		return &PreconditionError{Msg: "could not arm", Err: err}
	}
	if err := s.link.SetRC(vehicle.ThrottleChannel, throttleCruise); err != nil {
		return &PreconditionError{Msg: "setting cruise throttle failed", Err: err}
	}
	if err := wait.ForWaypoint(ctx, s.link, missionLegWaypoint, s.drv.opts(s.drv.timeouts.Waypoint)); err != nil {
		return err
	}

	sub := s.link.SubscribeText()

	if err := s.drv.KillEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine kill command failed", Err: err}
	}
	if err := wait.ForText(ctx, s.link, sub, engineOutText, s.drv.opts(s.drv.timeouts.Text)); err != nil {
		return err
	}
	s.drv.Settle(ctx, 1)

	during, err := s.link.DownloadParameters(ctx)
	if err != nil {
		return &PreconditionError{Msg: "downloading parameters failed", Err: err}
	}
	// Some drift is expected while the failure response is active;
	// log it so regressions stay visible.
	for _, change := range before.Diff(during, s.ignorePrefixes) {
		s.logger.Info("parameter changed during failure",
			slog.String("name", change.Name),
			slog.Float64("before", change.Before),
			slog.Float64("after", change.After))
	}

	if err := s.drv.StartEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine restore command failed", Err: err}
	}
	if err := wait.ForText(ctx, s.link, sub, engineRunningText, s.drv.opts(s.drv.timeouts.Text)); err != nil {
		return err
	}
	s.drv.Settle(ctx, 1)

	restored, err := s.link.DownloadParameters(ctx)
	if err != nil {
		return &PreconditionError{Msg: "downloading parameters failed", Err: err}
	}

	// Surface drift hidden by the ignore filter without failing on
	// it; the Q_P_ACCZ_IMAX exclusion in particular may mask real
	// nondeterminism.
	for _, change := range before.Diff(restored, nil) {
		if !containsChange(before.Diff(restored, s.ignorePrefixes), change.Name) {
			s.logger.Warn("ignored parameter drifted across recovery",
				slog.String("name", change.Name),
				slog.Float64("before", change.Before),
				slog.Float64("after", change.After))
		}
	}

	if changes := before.Diff(restored, s.ignorePrefixes); len(changes) > 0 {
		names := make([]string, len(changes))
		for i, change := range changes {
			names[i] = fmt.Sprintf("%s (%g -> %g)", change.Name, change.Before, change.After)
		}
		return Assertf("parameters changed across engine recovery: %s", strings.Join(names, ", "))
	}

	if err := s.link.Disarm(ctx, true); err != nil {
		return &PreconditionError{Msg: "force disarm failed", Err: err}
	}
	return wait.ForDisarm(ctx, s.link, s.drv.opts(s.drv.timeouts.Disarm))
}

// PrearmChecks verifies that arming eligibility tracks a bounded
// configuration value and the engine state: out-of-band low and high
// glide speeds must block arming, restoring a valid value must
// restore it, and a stopped engine must block arming until restarted.
func (s *Suite) PrearmChecks(ctx context.Context) error {
	if err := s.drv.ResetAircraft(ctx); err != nil {
		return err
	}

	armableOpts := s.drv.opts(s.drv.timeouts.Armable)

	for _, tc := range []struct {
		what  string
		value float64
	}{
		{"out-of-band low", 1},
		{"out-of-band high", 100},
	} {
		if err := s.link.SetParameter(ctx, glideSpeedParam, tc.value); err != nil {
			return &PreconditionError{Msg: "setting glide speed failed", Err: err}
		}
		if err := wait.ForNotArmable(ctx, s.link, armableOpts); err != nil {
			return Assertf("vehicle stayed armable with %s glide speed %.0f: %s", tc.what, tc.value, err)
		}
		if err := s.link.SetParameter(ctx, glideSpeedParam, 22); err != nil {
			return &PreconditionError{Msg: "restoring glide speed failed", Err: err}
		}
		if err := wait.ForArmable(ctx, s.link, armableOpts); err != nil {
			return Assertf("armability did not return after restoring glide speed: %s", err)
		}
	}

	if err := s.drv.KillEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine kill command failed", Err: err}
	}
	if err := wait.ForNotArmable(ctx, s.link, armableOpts); err != nil {
		return Assertf("vehicle stayed armable with the engine stopped: %s", err)
	}
	if err := s.drv.StartEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine restore command failed", Err: err}
	}
	if err := wait.ForArmable(ctx, s.link, armableOpts); err != nil {
		return Assertf("armability did not return with the engine running: %s", err)
	}

	return nil
}

func containsChange(changes []vehicle.Change, name string) bool {
	for _, change := range changes {
		if change.Name == name {
			return true
		}
	}
	return false
}
