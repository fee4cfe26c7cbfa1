// Package simlink provides an in-process simulated vehicle behind the
// vehicle.Link contract. The model is poll-driven: every Snapshot call
// advances simulated time by a fixed step, so a scenario run is
// deterministic for a given polling sequence. It models just enough
// behavior to exercise the engine-out orchestration paths: mode
// changes, engine RPM, mission progress, heading rotation, recovery
// navigation to a rally or guided target, prearm gating and status
// texts. It is not a flight dynamics model.
package simlink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

const (
	cruiseRPM      = 2500.0
	rpmRiseRate    = 1500.0 // rpm/s while starting
	rpmDecayRate   = 3000.0 // rpm/s after stop
	rpmRunningMin  = 1000.0 // above this the engine counts as running
	rpmStoppedMax  = 500.0  // below this the engine counts as out
	headingRate    = 5.0    // deg/s heading rotation in AUTO
	waypointPeriod = 5.0    // sim seconds per mission waypoint
	climbRate      = 5.0    // m/s in AUTO
	descentRate    = 4.0    // m/s during recovery
	recoverySpeed  = 30.0   // m/s ground speed during recovery
	cruiseAltitude = 120.0  // m
	throttleCruise = 1400   // PWM at or above which the mission runs

	glideSpeedMin = 5.0 // valid GLIDE_SPD band
	glideSpeedMax = 50.0

	// landingError is the residual horizontal miss of a normal
	// recovery. Cutting the assist or RTL phase short via the
	// ENGOUT_QAST_TIME / ENGOUT_QRTL_TIME parameters lands the
	// vehicle proportionally farther out.
	landingError       = 8.0
	assistLandingError = 80.0
	rtlLandingError    = 120.0
)

const (
	phaseParked phase = iota
	phaseMission
	phaseRecovery
	phaseLanded
)

type phase int

// Config parameterizes the simulated vehicle.
type Config struct {
	Home          vehicle.Location     // start and fallback recovery point
	MissionLength int                  // number of mission waypoints
	Step          time.Duration        // sim time advanced per poll
	Baseline      vehicle.ParameterSet // applied by ApplyParameterFile
}

// DefaultConfig returns a vehicle parked on the autotest hill with a
// seven-leg mission.
func DefaultConfig() Config {
	return Config{
		Home:          vehicle.Location{Latitude: 36.8325082, Longitude: -2.8512096, Altitude: 735},
		MissionLength: 7,
		Step:          time.Second,
		Baseline: vehicle.ParameterSet{
			"GLIDE_SPD":        22,
			"ENGOUT_STATE":     0,
			"ENGOUT_QAST_TIME": 0,
			"ENGOUT_QRTL_TIME": 0,
			"LAND_DISARMDELAY": 20,
			"STAT_RUNTIME":     0,
			"BARO_GND_TEMP":    25,
			"Q_P_ACCZ_IMAX":    0.5,
		},
	}
}

// WithLogger sets the logger for the simulated vehicle.
func WithLogger(logger *slog.Logger) func(*Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("component", "simlink"))
	}
}

// Link is a simulated vehicle implementing vehicle.Link.
type Link struct {
	logger *slog.Logger

	mu  sync.Mutex
	cfg Config

	simTime float64 // seconds since model start

	mode    vehicle.Mode
	armed   bool
	rc      map[int]int
	params  vehicle.ParameterSet
	rally   []vehicle.Location
	guided  *vehicle.Location
	mission string

	phase        phase
	missionStart float64 // simTime when the mission phase began
	wpIndex      int
	heading      float64
	pos          vehicle.Location
	alt          float64 // relative altitude, m

	engineOn     bool    // commanded state
	rpm          float64
	engineUp     bool    // rpm-derived running state
	engineOutAt  float64 // simTime of the last up->down transition
	faultTextOut bool    // assist/RTL timeout text already published

	broker vehicle.TextBroker
}

// New creates a simulated vehicle in the parked, engine-off state.
func New(cfg Config, options ...func(*Link)) *Link {
	if cfg.MissionLength <= 0 {
		cfg.MissionLength = 7
	}
	if cfg.Step <= 0 {
		cfg.Step = time.Second
	}
	if cfg.Baseline == nil {
		cfg.Baseline = DefaultConfig().Baseline
	}

	l := Link{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		cfg:    cfg,
		mode:   vehicle.ModeQHover,
		rc:     map[int]int{vehicle.ThrottleChannel: 1000},
		params: cfg.Baseline.Clone(),
		pos:    cfg.Home,
	}
	l.heading = cfg.Home.Heading

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Snapshot advances the model by one step and returns the resulting
// observation.
func (l *Link) Snapshot() vehicle.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.step(l.cfg.Step.Seconds())

	armable, reason := l.armableLocked()
	loc := l.pos
	loc.Altitude = l.alt
	loc.Heading = l.heading

	return vehicle.Snapshot{
		Time:          time.Now(),
		Mode:          l.mode,
		Armed:         l.armed,
		Armable:       armable,
		ArmableReason: reason,
		WaypointIndex: l.wpIndex,
		Heading:       l.heading,
		Location:      loc,
		RPM:           l.rpm,
		EngineRunning: l.engineUp,
	}
}

func (l *Link) SetMode(_ context.Context, mode vehicle.Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mode = mode
	l.logger.Debug("mode changed", slog.String("mode", string(mode)))
	return nil
}

func (l *Link) Arm(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if armable, reason := l.armableLocked(); !armable {
		return fmt.Errorf("arming refused: %s", reason)
	}
	l.armed = true
	l.broker.Publish("Armed")
	return nil
}

func (l *Link) Disarm(_ context.Context, force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.armed && l.phase != phaseLanded && !force {
		return fmt.Errorf("disarm refused while flying")
	}
	l.armed = false
	if force {
		// A forced disarm drops the vehicle wherever it is.
		l.phase = phaseParked
		l.alt = 0
	}
	l.broker.Publish("Disarmed")
	return nil
}

func (l *Link) SetRC(channel, pwm int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rc[channel] = pwm
	return nil
}

func (l *Link) SetParameter(_ context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params[name] = value
	return nil
}

func (l *Link) GetParameter(_ context.Context, name string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	value, ok := l.params[name]
	if !ok {
		return 0, fmt.Errorf("unknown parameter %s", name)
	}
	return value, nil
}

func (l *Link) SendCommand(_ context.Context, id vehicle.CommandID, args ...float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch id {
	case vehicle.CommandEngineControl:
		if len(args) < 1 {
			return fmt.Errorf("engine control requires a start/stop argument")
		}
		l.engineOn = args[0] != 0

	case vehicle.CommandNavWaypoint:
		if len(args) < 3 {
			return fmt.Errorf("nav waypoint requires lat, lon, alt")
		}
		target := vehicle.Location{Latitude: args[0], Longitude: args[1], Altitude: args[2]}
		l.guided = &target

	default:
		return fmt.Errorf("unknown command %d", id)
	}
	return nil
}

func (l *Link) DownloadParameters(context.Context) (vehicle.ParameterSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Clone(), nil
}

func (l *Link) SubscribeText() *vehicle.TextSubscription {
	return l.broker.Subscribe()
}

func (l *Link) UploadRallyPoints(_ context.Context, points []vehicle.Location) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rally = append([]vehicle.Location(nil), points...)
	return nil
}

func (l *Link) LoadMission(_ context.Context, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mission = ref
	return nil
}

func (l *Link) ApplyParameterFile(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params = l.cfg.Baseline.Clone()
	return nil
}

// Reboot restarts the vehicle process: back on the ground, engine
// off, mission position reset. Parameters persist across reboots.
func (l *Link) Reboot(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.armed = false
	l.mode = vehicle.ModeQHover
	l.phase = phaseParked
	l.engineOn = false
	l.rpm = 0
	l.engineUp = false
	l.faultTextOut = false
	l.wpIndex = 0
	l.alt = 0
	l.pos = l.cfg.Home
	l.heading = l.cfg.Home.Heading
	l.guided = nil
	l.rc[vehicle.ThrottleChannel] = 1000

	l.logger.Debug("vehicle rebooted")
	return nil
}

func (l *Link) armableLocked() (bool, string) {
	if l.armed {
		return false, "already armed"
	}
	if !l.engineUp {
		return false, "PreArm: engine not running"
	}
	if spd := l.params["GLIDE_SPD"]; spd < glideSpeedMin || spd > glideSpeedMax {
		return false, "PreArm: GLIDE_SPD out of range"
	}
	return true, ""
}

// step advances the model by dt seconds. Caller holds l.mu.
func (l *Link) step(dt float64) {
	l.simTime += dt

	l.stepEngine(dt)

	switch l.phase {
	case phaseParked:
		if l.armed && l.mode == vehicle.ModeAuto && l.engineUp &&
			l.rc[vehicle.ThrottleChannel] >= throttleCruise {
			l.phase = phaseMission
			l.missionStart = l.simTime
			l.wpIndex = 1
		}

	case phaseMission:
		if !l.engineUp {
			l.beginRecovery()
			return
		}
		elapsed := l.simTime - l.missionStart
		l.wpIndex = min(1+int(elapsed/waypointPeriod), l.cfg.MissionLength)
		l.heading = math.Mod(l.heading+headingRate*dt, 360)
		l.alt = math.Min(l.alt+climbRate*dt, cruiseAltitude)

		// Fly a lazy circle around home; the exact track is
		// irrelevant, only heading and waypoint progress matter.
		rad := l.heading * math.Pi / 180
		l.pos = l.cfg.Home.Offset(300*math.Sin(rad), 300*math.Cos(rad))

	case phaseRecovery:
		l.stepRecovery(dt)

	case phaseLanded:
		// Nothing moves once landed.
	}
}

func (l *Link) stepEngine(dt float64) {
	if l.engineOn {
		l.rpm = math.Min(l.rpm+rpmRiseRate*dt, cruiseRPM)
	} else {
		l.rpm = math.Max(l.rpm-rpmDecayRate*dt, 0)
	}

	if !l.engineUp && l.rpm >= rpmRunningMin {
		l.engineUp = true
		l.params["ENGOUT_STATE"] = 0
		l.broker.Publish("Engine running")
	}
	if l.engineUp && l.rpm <= rpmStoppedMax {
		l.engineUp = false
		l.engineOutAt = l.simTime

		// Failure response mutates its own state parameter and a
		// couple of volatile counters the integrity check is
		// expected to filter out.
		l.params["ENGOUT_STATE"] = 1
		l.params["STAT_RUNTIME"] += 60
		l.params["Q_P_ACCZ_IMAX"] += 0.05
		l.broker.Publish("Engine out")
	}
}

func (l *Link) beginRecovery() {
	l.phase = phaseRecovery
	l.faultTextOut = false
	l.broker.Publish("Engine out detected, gliding")
}

func (l *Link) stepRecovery(dt float64) {
	sinceOut := l.simTime - l.engineOutAt

	// Automatic return engages shortly after the failure unless the
	// operator has already diverted in GUIDED.
	if l.mode != vehicle.ModeGuided && l.mode != vehicle.ModeRTL &&
		l.mode != vehicle.ModeQLand && sinceOut >= 1 {
		l.mode = vehicle.ModeRTL
	}

	missM := landingError
	if qast := l.params["ENGOUT_QAST_TIME"]; qast > 0 {
		missM = assistLandingError
		if !l.faultTextOut && sinceOut >= qast+1 {
			l.faultTextOut = true
			l.broker.Publish("Q_ASSIST for too long")
		}
	} else if qrtl := l.params["ENGOUT_QRTL_TIME"]; qrtl > 0 {
		missM = rtlLandingError
		if !l.faultTextOut && sinceOut >= qrtl+1 {
			l.faultTextOut = true
			l.broker.Publish("QRTL for too long")
		}
	}

	aim := l.recoveryTarget().Offset(missM, 0)

	dist := l.pos.DistanceTo(aim)
	travel := recoverySpeed * dt
	if travel >= dist {
		l.pos = aim
	} else {
		// Move the fraction of the remaining leg covered this step.
		frac := travel / dist
		l.pos = vehicle.Location{
			Latitude:  l.pos.Latitude + (aim.Latitude-l.pos.Latitude)*frac,
			Longitude: l.pos.Longitude + (aim.Longitude-l.pos.Longitude)*frac,
		}
	}

	if l.pos.DistanceTo(aim) < 50 && l.mode != vehicle.ModeGuided {
		l.mode = vehicle.ModeQLand
	}

	l.alt = math.Max(l.alt-descentRate*dt, 0)
	if l.alt == 0 && l.pos.DistanceTo(aim) == 0 {
		l.phase = phaseLanded
		l.armed = false
		l.broker.Publish("Land complete")
		l.broker.Publish("Disarmed")
	}
}

// recoveryTarget picks where the vehicle recovers to: a guided target
// when one was commanded, else the first rally point, else home.
func (l *Link) recoveryTarget() vehicle.Location {
	if l.guided != nil {
		return *l.guided
	}
	if len(l.rally) > 0 {
		return l.rally[0]
	}
	return l.cfg.Home
}
