package vehicle

import "time"

// Snapshot is a point-in-time observation of the vehicle. Snapshots
// are produced by polling and never mutated, only replaced; callers
// that need the freshest state must re-poll rather than cache one.
type Snapshot struct {
	Time time.Time // observation time

	Mode          Mode
	Armed         bool
	Armable       bool   // all prearm checks pass
	ArmableReason string // first failing prearm check, empty when armable

	WaypointIndex int     // current mission waypoint
	Heading       float64 // degrees, 0 = north
	Location      Location

	RPM           float64
	EngineRunning bool
}
