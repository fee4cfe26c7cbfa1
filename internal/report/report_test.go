package report

import (
	"strings"
	"testing"
	"time"

	"github.com/cgreigagts/engout-harness/internal/scenario"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

func TestFormat(t *testing.T) {
	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	r := &scenario.Report{
		RunID:    "run-1",
		Started:  started,
		Finished: started.Add(12 * time.Minute),
		Results: []scenario.SubtestResult{
			{Name: "engine out at heading 90", Passed: true, Duration: 95 * time.Second},
			{
				Name:     "engine out with assist timeout",
				Kind:     scenario.KindAssertion,
				Detail:   "landed 320.0 m from target, outside [0, 300]",
				Duration: 140 * time.Second,
			},
		},
	}
	landings := []scenario.Landing{
		{
			Subtest:  "engine out at heading 90",
			Location: vehicle.Location{Latitude: 36.8165, Longitude: -2.8688},
			Distance: 8.2,
		},
	}

	out := Format(r, landings)

	for _, want := range []string{
		"run-1",
		"1 passed, 1 failed",
		"[PASS] engine out at heading 90",
		"[FAIL] engine out with assist timeout",
		"assertion: landed 320.0 m from target",
		"8.2m from target",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatNoLandings(t *testing.T) {
	out := Format(&scenario.Report{RunID: "run-2"}, nil)

	if strings.Contains(out, "LANDINGS") {
		t.Errorf("Empty landings should omit the section:\n%s", out)
	}
}
