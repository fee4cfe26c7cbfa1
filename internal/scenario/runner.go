package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/cgreigagts/engout-harness/internal/vehicle"
	"github.com/cgreigagts/engout-harness/internal/wait"
)

// Result kinds recorded for failed subtests.
const (
	KindTimeout      = "timeout"
	KindAssertion    = "assertion"
	KindPrecondition = "precondition"
	KindError        = "error"
)

// SubtestResult is the outcome of one sub-scenario. Created at
// sub-scenario start, finalized at its end, owned by the runner's
// aggregate report.
type SubtestResult struct {
	Name     string
	Passed   bool
	Kind     string // empty on pass
	Detail   string // diagnostic text on failure
	Duration time.Duration
}

// Report aggregates a full run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []SubtestResult
}

// Failed returns the number of failed subtests.
func (r *Report) Failed() int {
	failed := 0
	for _, result := range r.Results {
		if !result.Passed {
			failed++
		}
	}
	return failed
}

// Recorder persists subtest results and landings as they complete.
type Recorder interface {
	RecordResult(ctx context.Context, runID string, result SubtestResult) error
	RecordLanding(ctx context.Context, runID string, landing Landing) error
}

// WithRunnerLogger sets the logger for the runner.
func WithRunnerLogger(logger *slog.Logger) func(*Runner) {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRecorder sets the result sink.
func WithRecorder(recorder Recorder) func(*Runner) {
	return func(r *Runner) {
		r.recorder = recorder
	}
}

// WithAbortOnFailure makes the runner stop at the first failed
// subtest instead of isolating state and continuing.
func WithAbortOnFailure(abort bool) func(*Runner) {
	return func(r *Runner) {
		r.abortOnFailure = abort
	}
}

// WithRandom sets the random source used for heading sampling. A
// fixed seed makes a run reproducible.
func WithRandom(rng *rand.Rand) func(*Runner) {
	return func(r *Runner) {
		r.rng = rng
	}
}

// WithRandomHeadings sets how many randomized headings are flown in
// addition to the four cardinals.
func WithRandomHeadings(n int) func(*Runner) {
	return func(r *Runner) {
		r.randomHeadings = n
	}
}

// WithTargets overrides the rally and guided landing points.
func WithTargets(rally, guided vehicle.Location) func(*Runner) {
	return func(r *Runner) {
		r.rally = rally
		r.guided = guided
	}
}

// WithDistanceBand overrides the default landing distance band for
// the plain mission variants.
func WithDistanceBand(minM, maxM float64) func(*Runner) {
	return func(r *Runner) {
		r.minDistance = minM
		r.maxDistance = maxM
	}
}

// WithRunID fixes the run identifier instead of generating one. The
// caller can then register the run with its recorder up front.
func WithRunID(id string) func(*Runner) {
	return func(r *Runner) {
		r.runID = id
	}
}

// Runner executes the ordered list of engine-out sub-scenarios,
// isolates failures via forced resets, and aggregates the results.
// It is the only layer that catches the typed scenario errors.
type Runner struct {
	link   vehicle.Link
	drv    *Driver
	suite  *Suite
	logger *slog.Logger

	recorder       Recorder
	abortOnFailure bool
	rng            *rand.Rand
	randomHeadings int
	runID          string

	rally  vehicle.Location
	guided vehicle.Location

	minDistance float64
	maxDistance float64
}

// NewRunner creates a runner over the given link, driver and suite.
func NewRunner(link vehicle.Link, drv *Driver, suite *Suite, options ...func(*Runner)) *Runner {
	r := Runner{
		link:           link,
		drv:            drv,
		suite:          suite,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		randomHeadings: 4,

		// The rally altitude is deliberately absurd; a correct
		// recovery must never use it.
		rally:  vehicle.Location{Latitude: 36.8164241, Longitude: -2.868918, Altitude: 5000},
		guided: vehicle.Location{Latitude: 36.8192676, Longitude: -2.8719136, Altitude: 5000},

		minDistance: 0,
		maxDistance: 50,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

type subtest struct {
	name string
	run  func(ctx context.Context) error
}

func (r *Runner) subtests() []subtest {
	mission := func(cfg MissionConfig) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return r.suite.BasicAutoMission(ctx, cfg)
		}
	}
	plain := func(heading float64) MissionConfig {
		return MissionConfig{
			Heading:     heading,
			Target:      r.rally,
			MinDistance: r.minDistance,
			MaxDistance: r.maxDistance,
		}
	}

	guidedCfg := MissionConfig{
		Heading:     270,
		Target:      r.guided,
		Guided:      true,
		MinDistance: r.minDistance,
		MaxDistance: r.maxDistance,
	}

	tests := []subtest{
		{guidedCfg.Name(), mission(guidedCfg)},
	}

	headings := []float64{0, 90, 180, 270}
	for i := 0; i < r.randomHeadings; i++ {
		headings = append(headings, float64(r.rng.Intn(360)))
	}
	for _, heading := range headings {
		cfg := plain(heading)
		tests = append(tests, subtest{cfg.Name(), mission(cfg)})
	}

	assistCfg := MissionConfig{
		Heading: 270, Target: r.rally,
		MinDistance: 0, MaxDistance: 300,
		AssistTimeout: 1,
	}
	rtlCfg := MissionConfig{
		Heading: 270, Target: r.rally,
		MinDistance: 50, MaxDistance: 300,
		RTLTimeout: 5,
	}

	tests = append(tests,
		subtest{assistCfg.Name(), mission(assistCfg)},
		subtest{rtlCfg.Name(), mission(rtlCfg)},
		subtest{"parameter backup and restore", r.suite.ParameterIntegrity},
		subtest{"prearm checks", r.suite.PrearmChecks},
	)
	return tests
}

// Run executes all sub-scenarios in order. The returned report lists
// every subtest that ran; a non-nil error means the run itself could
// not proceed (setup failure or an unrecoverable vehicle state), not
// that a subtest failed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	report := Report{
		RunID:   runID,
		Started: time.Now(),
	}

	if err := r.link.LoadMission(ctx, MissionFile); err != nil {
		return nil, fmt.Errorf("loading mission: %w", err)
	}
	if err := r.link.UploadRallyPoints(ctx, []vehicle.Location{r.rally}); err != nil {
		return nil, fmt.Errorf("uploading rally points: %w", err)
	}

	for _, test := range r.subtests() {
		result := r.runSubtest(ctx, test)
		report.Results = append(report.Results, result)

		if r.recorder != nil {
			if err := r.recorder.RecordResult(ctx, report.RunID, result); err != nil {
				r.logger.Error(err.Error())
			}
			if landing := r.suite.TakeLanding(); landing != nil {
				if err := r.recorder.RecordLanding(ctx, report.RunID, *landing); err != nil {
					r.logger.Error(err.Error())
				}
			}
		}

		if result.Passed {
			continue
		}
		if r.abortOnFailure {
			r.logger.Warn("aborting run on first failure", slog.String("subtest", result.Name))
			break
		}

		// A failed subtest may leave the vehicle armed or in an
		// abnormal mode; force a clean reset before the next one.
		if err := r.drv.ResetAircraft(ctx); err != nil {
			report.Finished = time.Now()
			return &report, fmt.Errorf("vehicle unrecoverable after %q: %w", result.Name, err)
		}
		if ctx.Err() != nil {
			report.Finished = time.Now()
			return &report, ctx.Err()
		}
	}

	report.Finished = time.Now()
	return &report, nil
}

func (r *Runner) runSubtest(ctx context.Context, test subtest) SubtestResult {
	r.logger.Info("starting subtest", slog.String("name", test.name))
	start := time.Now()

	err := test.run(ctx)

	result := SubtestResult{
		Name:     test.name,
		Passed:   err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Kind = classify(err)
		result.Detail = err.Error()
		r.logger.Error("subtest failed",
			slog.String("name", test.name),
			slog.String("kind", result.Kind),
			slog.String("detail", result.Detail))
	} else {
		r.logger.Info("subtest passed",
			slog.String("name", test.name),
			slog.Duration("duration", result.Duration))
	}
	return result
}

func classify(err error) string {
	switch {
	case wait.IsTimeout(err):
		return KindTimeout
	case IsAssertion(err):
		return KindAssertion
	case IsPrecondition(err):
		return KindPrecondition
	default:
		return KindError
	}
}
