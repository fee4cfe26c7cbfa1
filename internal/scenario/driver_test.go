package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cgreigagts/engout-harness/internal/simlink"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

func newTestDriver(t *testing.T, options ...func(*Driver)) (*Driver, *simlink.Link) {
	t.Helper()

	link := simlink.New(simlink.DefaultConfig())
	options = append([]func(*Driver){WithPollInterval(time.Millisecond)}, options...)
	return NewDriver(link, options...), link
}

func TestResetAircraft_Idempotent(t *testing.T) {
	drv, link := newTestDriver(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, drv.ResetAircraft(ctx), "reset %d", i+1)

		snap := link.Snapshot()
		require.False(t, snap.Armed, "reset %d left the vehicle armed", i+1)
		require.True(t, snap.Armable, "reset %d did not restore armability: %s", i+1, snap.ArmableReason)
		require.True(t, snap.EngineRunning, "reset %d left the engine stopped", i+1)
		require.Equal(t, vehicle.ModeQHover, snap.Mode)
	}
}

// deafEngineLink drops engine-control commands, so a reset can never
// bring the RPM into the operating band.
type deafEngineLink struct {
	*simlink.Link
}

func (l *deafEngineLink) SendCommand(ctx context.Context, id vehicle.CommandID, args ...float64) error {
	if id == vehicle.CommandEngineControl {
		return nil
	}
	return l.Link.SendCommand(ctx, id, args...)
}

func TestResetAircraft_FailsFatallyOnEngineTimeout(t *testing.T) {
	sim := simlink.New(simlink.DefaultConfig())
	link := &deafEngineLink{Link: sim}

	timeouts := DefaultTimeouts()
	timeouts.RPM = 50 * time.Millisecond
	drv := NewDriver(link, WithPollInterval(time.Millisecond), WithTimeouts(timeouts))

	err := drv.ResetAircraft(context.Background())
	require.Error(t, err)
	require.True(t, IsPrecondition(err), "reset failure must be a precondition error, got %v", err)
}

func TestDivertGuided(t *testing.T) {
	drv, link := newTestDriver(t)
	ctx := context.Background()

	target := vehicle.Location{Latitude: 36.8192676, Longitude: -2.8719136, Altitude: 50}
	require.NoError(t, drv.DivertGuided(ctx, target))

	snap := link.Snapshot()
	require.Equal(t, vehicle.ModeGuided, snap.Mode)
}

func TestKillEngine_DoesNotWait(t *testing.T) {
	drv, link := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, drv.ResetAircraft(ctx))

	// The kill command returns before the engine has spun down;
	// the effect is only observable through subsequent polling.
	require.NoError(t, drv.KillEngine(ctx))
	var snap vehicle.Snapshot
	for i := 0; i < 10; i++ {
		snap = link.Snapshot()
		if !snap.EngineRunning {
			break
		}
	}
	require.False(t, snap.EngineRunning)
}
