package wait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

// fakeLink replays a scripted sequence of snapshots, one per poll.
// The last snapshot repeats once the script is exhausted.
type fakeLink struct {
	mu     sync.Mutex
	snaps  []vehicle.Snapshot
	idx    int
	params map[string][]float64
	broker vehicle.TextBroker
}

func (f *fakeLink) Snapshot() vehicle.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.snaps) == 0 {
		return vehicle.Snapshot{}
	}
	snap := f.snaps[f.idx]
	if f.idx < len(f.snaps)-1 {
		f.idx++
	}
	return snap
}

func (f *fakeLink) GetParameter(_ context.Context, name string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values := f.params[name]
	if len(values) == 0 {
		return 0, errors.New("unknown parameter")
	}
	value := values[0]
	if len(values) > 1 {
		f.params[name] = values[1:]
	}
	return value, nil
}

func (f *fakeLink) SubscribeText() *vehicle.TextSubscription { return f.broker.Subscribe() }

func (f *fakeLink) SetMode(context.Context, vehicle.Mode) error            { return nil }
func (f *fakeLink) Arm(context.Context) error                              { return nil }
func (f *fakeLink) Disarm(context.Context, bool) error                     { return nil }
func (f *fakeLink) SetRC(int, int) error                                   { return nil }
func (f *fakeLink) SetParameter(context.Context, string, float64) error    { return nil }
func (f *fakeLink) SendCommand(context.Context, vehicle.CommandID, ...float64) error {
	return nil
}
func (f *fakeLink) DownloadParameters(context.Context) (vehicle.ParameterSet, error) {
	return nil, nil
}
func (f *fakeLink) UploadRallyPoints(context.Context, []vehicle.Location) error { return nil }
func (f *fakeLink) LoadMission(context.Context, string) error                   { return nil }
func (f *fakeLink) ApplyParameterFile(context.Context, string) error            { return nil }
func (f *fakeLink) Reboot(context.Context) error                                { return nil }

func fastOpts() Options {
	return Options{Interval: time.Millisecond, Timeout: 250 * time.Millisecond}
}

func TestForMode(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{Mode: vehicle.ModeQHover},
		{Mode: vehicle.ModeQHover},
		{Mode: vehicle.ModeRTL},
	}}

	if err := ForMode(context.Background(), link, vehicle.ModeRTL, fastOpts()); err != nil {
		t.Fatalf("Expected mode wait to succeed: %v", err)
	}
}

func TestForMode_Timeout(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{{Mode: vehicle.ModeAuto}}}

	err := ForMode(context.Background(), link, vehicle.ModeRTL, Options{
		Interval: time.Millisecond,
		Timeout:  20 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Expected timeout")
	}

	var timeout *Timeout
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected *Timeout, got %T: %v", err, err)
	}
	if timeout.Elapsed < 20*time.Millisecond {
		t.Errorf("Timeout elapsed %v below the configured bound", timeout.Elapsed)
	}
	if timeout.LastObserved != "mode AUTO" {
		t.Errorf("Expected last observation 'mode AUTO', got %q", timeout.LastObserved)
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout should report true for a *Timeout")
	}
}

func TestForHeading_Wraparound(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{Heading: 180},
		{Heading: 358}, // 3° from 1° across the 0/360 seam
	}}

	if err := ForHeading(context.Background(), link, 1, 5, fastOpts()); err != nil {
		t.Fatalf("Expected wraparound heading to match: %v", err)
	}
}

func TestForText_BufferedBetweenPolls(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{{}}}
	sub := link.SubscribeText()

	// All events arrive before the waiter ever polls. The earlier
	// ones must not shadow the match.
	link.broker.Publish("Engine out")
	link.broker.Publish("Gliding to rally point")
	link.broker.Publish("Q_ASSIST for too long")

	if err := ForText(context.Background(), link, sub, "Q_ASSIST for too long", fastOpts()); err != nil {
		t.Fatalf("Expected buffered text to be seen: %v", err)
	}
}

func TestForText_Timeout(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{{}}}
	sub := link.SubscribeText()
	link.broker.Publish("Engine out")

	err := ForText(context.Background(), link, sub, "QRTL for too long", Options{
		Interval: time.Millisecond,
		Timeout:  20 * time.Millisecond,
	})

	var timeout *Timeout
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected *Timeout, got %v", err)
	}
	if timeout.LastObserved != `last text "Engine out"` {
		t.Errorf("Expected last text in observation, got %q", timeout.LastObserved)
	}
}

func TestForDisarm(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{Armed: true},
		{Armed: true},
		{Armed: false},
	}}

	if err := ForDisarm(context.Background(), link, fastOpts()); err != nil {
		t.Fatalf("Expected disarm wait to succeed: %v", err)
	}
}

func TestForArmable_RequiresConsecutivePolls(t *testing.T) {
	// Prearm state flaps once; the hold counter must restart.
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{Armable: true},
		{Armable: true},
		{Armable: false, ArmableReason: "PreArm: engine not running"},
		{Armable: true},
		{Armable: true},
		{Armable: true},
	}}

	if err := ForArmable(context.Background(), link, fastOpts()); err != nil {
		t.Fatalf("Expected armable wait to succeed after flap: %v", err)
	}

	// Six polls consumed: three before the flap reset, three after.
	if link.idx != len(link.snaps)-1 {
		t.Errorf("Expected script to be fully consumed, stopped at %d", link.idx)
	}
}

func TestForNotArmable_ReportsReason(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{Armable: true},
		{Armable: false, ArmableReason: "PreArm: GLIDE_SPD out of range"},
	}}

	if err := ForNotArmable(context.Background(), link, fastOpts()); err != nil {
		t.Fatalf("Expected not-armable wait to succeed: %v", err)
	}
}

func TestForRPM(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{
		{RPM: 0},
		{RPM: 600},
		{RPM: 2200},
	}}

	if err := ForRPM(context.Background(), link, 1000, 3000, fastOpts()); err != nil {
		t.Fatalf("Expected rpm wait to succeed: %v", err)
	}
}

func TestForParameterStable(t *testing.T) {
	link := &fakeLink{
		snaps:  []vehicle.Snapshot{{}},
		params: map[string][]float64{"GLIDE_SPD": {10, 15, 22, 22, 22}},
	}

	if err := ForParameterStable(context.Background(), link, "GLIDE_SPD", 3, fastOpts()); err != nil {
		t.Fatalf("Expected parameter to stabilize: %v", err)
	}
}

func TestFor_ContextCanceled(t *testing.T) {
	link := &fakeLink{snaps: []vehicle.Snapshot{{Mode: vehicle.ModeAuto}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForMode(ctx, link, vehicle.ModeRTL, Options{Interval: time.Millisecond, Timeout: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context cancellation, got %v", err)
	}
	if IsTimeout(err) {
		t.Error("Cancellation must not be reported as a timeout")
	}
}
