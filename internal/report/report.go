// Package report renders a run report for the console.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cgreigagts/engout-harness/internal/scenario"
)

const rule = "================================================================================"

// Format renders the run report as a multi-line banner. Landings is
// optional and may be nil when no subtest reached the ground.
func Format(r *scenario.Report, landings []scenario.Landing) string {
	var b strings.Builder

	passed := len(r.Results) - r.Failed()
	fmt.Fprintf(&b, `
%s
                         ENGINE-OUT RUN REPORT
%s

RUN SUMMARY
-----------
  Run ID:     %s
  Started:    %s
  Finished:   %s
  Duration:   %v
  Subtests:   %d passed, %d failed

SUBTESTS
--------
`,
		rule, rule,
		r.RunID,
		r.Started.Format("2006-01-02 15:04:05"),
		r.Finished.Format("2006-01-02 15:04:05"),
		r.Finished.Sub(r.Started).Round(time.Millisecond),
		passed, r.Failed(),
	)

	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %-40s %v\n", status, res.Name, res.Duration.Round(time.Second))
		if !res.Passed {
			fmt.Fprintf(&b, "         %s: %s\n", res.Kind, res.Detail)
		}
	}

	if len(landings) > 0 {
		b.WriteString("\nLANDINGS\n--------\n")
		for _, l := range landings {
			fmt.Fprintf(&b, "  %-40s %sm from target (%s)\n",
				l.Subtest, humanize.FtoaWithDigits(l.Distance, 1), l.Location.String())
		}
	}

	b.WriteString("\n")
	b.WriteString(rule)
	return b.String()
}
