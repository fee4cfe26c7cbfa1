// Package wait implements bounded blocking primitives over a vehicle
// link. Each primitive polls the link at a fixed interval and returns
// the first instant its condition holds, or fails with a *Timeout
// carrying the elapsed time and the last observed value. Primitives
// never mutate vehicle state.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultInterval is the polling interval used when Options
	// leaves it zero.
	DefaultInterval = 100 * time.Millisecond

	// DefaultTimeout is the wait bound used when Options leaves it
	// zero.
	DefaultTimeout = 60 * time.Second
)

// Options bound a single wait.
type Options struct {
	Interval time.Duration // polling interval
	Timeout  time.Duration // overall bound
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Timeout reports that a wait's bound expired before its condition
// held. It is always recoverable by the runner via a forced reset.
type Timeout struct {
	What         string        // description of the awaited condition
	Elapsed      time.Duration // time spent polling
	LastObserved string        // last observation before giving up
}

func (t *Timeout) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s (last observed: %s)",
		t.Elapsed.Round(time.Millisecond), t.What, t.LastObserved)
}

// IsTimeout reports whether err is, or wraps, a wait timeout.
func IsTimeout(err error) bool {
	var t *Timeout
	return errors.As(err, &t)
}

// Condition reports whether the awaited state holds, together with a
// description of the observation used for the decision.
type Condition func() (ok bool, observed string)

// For polls cond at the configured interval until it holds, the bound
// expires, or ctx is canceled. The condition is checked once before
// the first sleep, so an already-true condition returns immediately.
func For(ctx context.Context, what string, cond Condition, opts Options) error {
	opts = opts.withDefaults()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var last string
	for {
		ok, observed := cond()
		last = observed
		if ok {
			return nil
		}

		if !time.Now().Before(deadline) {
			return &Timeout{What: what, Elapsed: time.Since(start), LastObserved: last}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		case <-ticker.C:
		}
	}
}
