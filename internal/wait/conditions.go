package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

// armableHoldPolls is the number of consecutive armable observations
// required before ForArmable succeeds. Prearm state can flap while
// checks settle, so a single positive poll is not trusted.
const armableHoldPolls = 3

// ForMode waits until the reported flight mode equals mode.
func ForMode(ctx context.Context, link vehicle.Link, mode vehicle.Mode, opts Options) error {
	return For(ctx, fmt.Sprintf("mode %s", mode), func() (bool, string) {
		snap := link.Snapshot()
		return snap.Mode == mode, fmt.Sprintf("mode %s", snap.Mode)
	}, opts)
}

// ForHeading waits until the circular difference between the current
// and target heading is within tolerance degrees.
func ForHeading(ctx context.Context, link vehicle.Link, heading, tolerance float64, opts Options) error {
	return For(ctx, fmt.Sprintf("heading %.0f±%.0f°", heading, tolerance), func() (bool, string) {
		snap := link.Snapshot()
		return vehicle.HeadingDelta(snap.Heading, heading) <= tolerance,
			fmt.Sprintf("heading %.1f°", snap.Heading)
	}, opts)
}

// ForWaypoint waits until the current mission waypoint index reaches
// index.
func ForWaypoint(ctx context.Context, link vehicle.Link, index int, opts Options) error {
	return For(ctx, fmt.Sprintf("waypoint %d", index), func() (bool, string) {
		snap := link.Snapshot()
		return snap.WaypointIndex >= index, fmt.Sprintf("waypoint %d", snap.WaypointIndex)
	}, opts)
}

// ForText waits until a status text containing substring arrives on
// sub. The subscription buffers events between polls, so texts
// emitted while the waiter slept are still seen. Matched and earlier
// texts are consumed from the subscription.
func ForText(ctx context.Context, link vehicle.Link, sub *vehicle.TextSubscription, substring string, opts Options) error {
	var last string
	return For(ctx, fmt.Sprintf("text %q", substring), func() (bool, string) {
		link.Snapshot() // keep the link polled so the vehicle progresses

		for {
			text, ok := sub.Next()
			if !ok {
				break
			}
			last = text
			if strings.Contains(text, substring) {
				return true, fmt.Sprintf("text %q", text)
			}
		}
		if last == "" {
			return false, "no text received"
		}
		return false, fmt.Sprintf("last text %q", last)
	}, opts)
}

// ForDisarm waits until the vehicle reports disarmed.
func ForDisarm(ctx context.Context, link vehicle.Link, opts Options) error {
	return For(ctx, "disarm", func() (bool, string) {
		snap := link.Snapshot()
		if snap.Armed {
			return false, "armed"
		}
		return true, "disarmed"
	}, opts)
}

// ForArmable waits until prearm checks pass and stay passing for
// several consecutive polls.
func ForArmable(ctx context.Context, link vehicle.Link, opts Options) error {
	held := 0
	return For(ctx, "ready to arm", func() (bool, string) {
		snap := link.Snapshot()
		if !snap.Armable {
			held = 0
			if snap.ArmableReason != "" {
				return false, snap.ArmableReason
			}
			return false, "not armable"
		}
		held++
		return held >= armableHoldPolls, fmt.Sprintf("armable for %d polls", held)
	}, opts)
}

// ForNotArmable waits until at least one prearm check fails.
func ForNotArmable(ctx context.Context, link vehicle.Link, opts Options) error {
	return For(ctx, "not ready to arm", func() (bool, string) {
		snap := link.Snapshot()
		if snap.Armable {
			return false, "armable"
		}
		if snap.ArmableReason != "" {
			return true, snap.ArmableReason
		}
		return true, "not armable"
	}, opts)
}

// ForRPM waits until engine RPM is within [minRPM, maxRPM].
func ForRPM(ctx context.Context, link vehicle.Link, minRPM, maxRPM float64, opts Options) error {
	return For(ctx, fmt.Sprintf("rpm in [%.0f, %.0f]", minRPM, maxRPM), func() (bool, string) {
		snap := link.Snapshot()
		return snap.RPM >= minRPM && snap.RPM <= maxRPM, fmt.Sprintf("rpm %.0f", snap.RPM)
	}, opts)
}

// ForParameterStable waits until the named parameter reports the same
// value across holdPolls consecutive polls. Used after applying a
// parameter file, when writes may still be settling.
func ForParameterStable(ctx context.Context, link vehicle.Link, name string, holdPolls int, opts Options) error {
	if holdPolls < 2 {
		holdPolls = 2
	}

	var (
		last float64
		held int
	)
	return For(ctx, fmt.Sprintf("parameter %s stable", name), func() (bool, string) {
		link.Snapshot()

		value, err := link.GetParameter(ctx, name)
		if err != nil {
			held = 0
			return false, fmt.Sprintf("read error: %s", err)
		}
		if held == 0 || value != last {
			last = value
			held = 1
			return false, fmt.Sprintf("%s=%g", name, value)
		}
		held++
		return held >= holdPolls, fmt.Sprintf("%s=%g for %d polls", name, value, held)
	}, opts)
}
