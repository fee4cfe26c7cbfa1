package vehicle

import "context"

const (
	ModeAuto   Mode = "AUTO"
	ModeGuided Mode = "GUIDED"
	ModeRTL    Mode = "RTL"
	ModeQHover Mode = "QHOVER"
	ModeQLand  Mode = "QLAND"
)

// Mode is a named flight mode as reported by the vehicle.
type Mode string

const (
	// CommandEngineControl starts (arg 1) or stops (arg 0) the engine.
	CommandEngineControl CommandID = iota + 1

	// CommandNavWaypoint sends a single guided navigation target as
	// latitude, longitude and relative altitude.
	CommandNavWaypoint
)

// CommandID identifies a vehicle command issued over the link.
type CommandID int

// ThrottleChannel is the RC channel carrying the throttle stick.
const ThrottleChannel = 3

// Link abstracts the telemetry and command channel to a vehicle. The
// harness treats the link as exclusively owned by the currently
// executing step; no two steps issue commands concurrently.
//
// Implementations must keep Snapshot cheap: wait primitives call it
// once per polling interval.
type Link interface {
	// SetMode requests a flight mode change.
	SetMode(ctx context.Context, mode Mode) error

	// Arm arms the vehicle. Arming may be refused while prearm
	// checks fail.
	Arm(ctx context.Context) error

	// Disarm disarms the vehicle. With force set, the vehicle must
	// disarm regardless of its current state.
	Disarm(ctx context.Context, force bool) error

	// SetRC overrides an RC input channel with a PWM value.
	SetRC(channel, pwm int) error

	// SetParameter writes a single named parameter.
	SetParameter(ctx context.Context, name string, value float64) error

	// GetParameter reads a single named parameter.
	GetParameter(ctx context.Context, name string) (float64, error)

	// SendCommand issues a command with numeric arguments.
	SendCommand(ctx context.Context, id CommandID, args ...float64) error

	// Snapshot returns a fresh point-in-time observation of the
	// vehicle state.
	Snapshot() Snapshot

	// DownloadParameters fetches the complete parameter set.
	DownloadParameters(ctx context.Context) (ParameterSet, error)

	// SubscribeText returns a buffered subscription to asynchronous
	// status texts. Events emitted between polls are queued, never
	// dropped.
	SubscribeText() *TextSubscription

	// UploadRallyPoints replaces the vehicle's rally point list.
	UploadRallyPoints(ctx context.Context, points []Location) error

	// LoadMission loads a mission by file reference. Mission file
	// handling itself belongs to an external collaborator.
	LoadMission(ctx context.Context, ref string) error

	// ApplyParameterFile applies a baseline parameter file reference.
	ApplyParameterFile(ctx context.Context, ref string) error

	// Reboot restarts the vehicle process and waits for the link to
	// come back.
	Reboot(ctx context.Context) error
}
