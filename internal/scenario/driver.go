package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
	"github.com/cgreigagts/engout-harness/internal/wait"
)

const (
	throttleIdle   = 1000
	throttleCruise = 1500

	// Engine RPM band expected after a commanded start.
	startRPMMin = 1000
	startRPMMax = 3000

	// BaselineParamFile is the parameter file reapplied on every
	// aircraft reset.
	BaselineParamFile = "fireeye-engout.parm"

	// MissionFile is the scripted mission flown by every
	// sub-scenario.
	MissionFile = "mission.waypoints"
)

// Timeouts bound the individual waits a step performs. Mission
// transit can be slow, hence the long waypoint and disarm bounds.
type Timeouts struct {
	Mode      time.Duration
	Heading   time.Duration
	Waypoint  time.Duration
	Disarm    time.Duration
	Armable   time.Duration
	Text      time.Duration
	RPM       time.Duration
	Parameter time.Duration
}

// DefaultTimeouts returns the bounds used against a real simulator.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Mode:      60 * time.Second,
		Heading:   300 * time.Second,
		Waypoint:  600 * time.Second,
		Disarm:    600 * time.Second,
		Armable:   120 * time.Second,
		Text:      120 * time.Second,
		RPM:       30 * time.Second,
		Parameter: 30 * time.Second,
	}
}

// WithDriverLogger sets the logger for the driver.
func WithDriverLogger(logger *slog.Logger) func(*Driver) {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithPollInterval sets the polling interval used by every wait the
// driver performs.
func WithPollInterval(interval time.Duration) func(*Driver) {
	return func(d *Driver) {
		d.poll = interval
	}
}

// WithTimeouts overrides the per-wait bounds.
func WithTimeouts(t Timeouts) func(*Driver) {
	return func(d *Driver) {
		d.timeouts = t
	}
}

// Driver executes single orchestrated actions against the vehicle:
// resets, guided diversions and engine fault injection. Steps have
// side effects on the vehicle; the read-only waiting lives in the
// wait package.
type Driver struct {
	link     vehicle.Link
	logger   *slog.Logger
	poll     time.Duration
	timeouts Timeouts
}

// NewDriver creates a driver with a discard logger and the default
// timeouts.
func NewDriver(link vehicle.Link, options ...func(*Driver)) *Driver {
	d := Driver{
		link:     link,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		poll:     wait.DefaultInterval,
		timeouts: DefaultTimeouts(),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

func (d *Driver) opts(timeout time.Duration) wait.Options {
	return wait.Options{Interval: d.poll, Timeout: timeout}
}

// ResetAircraft forces the vehicle back to a known-good armable
// baseline: force-disarm, reboot, reapply the baseline parameter
// file, throttle to idle, safe hover mode, engine start, RPM in the
// expected band, then armable. A reset failure invalidates the rest
// of the sub-scenario and is reported as a precondition failure.
func (d *Driver) ResetAircraft(ctx context.Context) error {
	d.logger.Info("resetting aircraft")

	if err := d.link.Disarm(ctx, true); err != nil {
		return &PreconditionError{Msg: "force disarm failed", Err: err}
	}
	if err := d.link.Reboot(ctx); err != nil {
		return &PreconditionError{Msg: "reboot failed", Err: err}
	}
	if err := d.link.ApplyParameterFile(ctx, BaselineParamFile); err != nil {
		return &PreconditionError{Msg: "applying baseline parameters failed", Err: err}
	}
	if err := wait.ForParameterStable(ctx, d.link, "GLIDE_SPD", 3, d.opts(d.timeouts.Parameter)); err != nil {
		return &PreconditionError{Msg: "baseline parameters did not settle", Err: err}
	}
	if err := d.link.SetRC(vehicle.ThrottleChannel, throttleIdle); err != nil {
		return &PreconditionError{Msg: "setting throttle idle failed", Err: err}
	}
	if err := d.link.SetMode(ctx, vehicle.ModeQHover); err != nil {
		return &PreconditionError{Msg: "changing to hover mode failed", Err: err}
	}
	if err := d.StartEngine(ctx); err != nil {
		return &PreconditionError{Msg: "engine start failed", Err: err}
	}
	if err := wait.ForRPM(ctx, d.link, startRPMMin, startRPMMax, d.opts(d.timeouts.RPM)); err != nil {
		return &PreconditionError{Msg: "engine never reached the operating band", Err: err}
	}
	if err := wait.ForArmable(ctx, d.link, d.opts(d.timeouts.Armable)); err != nil {
		return &PreconditionError{Msg: "vehicle never became armable", Err: err}
	}

	d.logger.Info("aircraft reset complete")
	return nil
}

// DivertGuided switches to GUIDED and issues a single navigation
// target at relative altitude.
func (d *Driver) DivertGuided(ctx context.Context, target vehicle.Location) error {
	if err := d.link.SetMode(ctx, vehicle.ModeGuided); err != nil {
		return fmt.Errorf("changing to guided mode: %w", err)
	}
	if err := d.link.SendCommand(ctx, vehicle.CommandNavWaypoint,
		target.Latitude, target.Longitude, target.Altitude); err != nil {
		return fmt.Errorf("sending guided target: %w", err)
	}

	d.logger.Info("diverted to guided target", slog.String("target", target.String()))
	return nil
}

// KillEngine injects the simulated engine failure. It does not wait
// for any effect; callers observe the outcome through text or RPM
// waits.
func (d *Driver) KillEngine(ctx context.Context) error {
	d.logger.Info("killing engine")
	return d.link.SendCommand(ctx, vehicle.CommandEngineControl, 0)
}

// StartEngine commands an engine start. Like KillEngine it does not
// wait for the engine to respond.
func (d *Driver) StartEngine(ctx context.Context) error {
	return d.link.SendCommand(ctx, vehicle.CommandEngineControl, 1)
}

// Settle polls the vehicle for n intervals, letting simulated time
// pass without asserting anything.
func (d *Driver) Settle(ctx context.Context, n int) {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for i := 0; i < n; i++ {
		d.link.Snapshot()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
