package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cgreigagts/engout-harness/internal/scenario"
	"github.com/cgreigagts/engout-harness/internal/vehicle"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := New(filepath.Join(t.TempDir(), "engout.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Closing store: %v", err)
		}
	})
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "run-1", map[string]any{"seed": 7})
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	result := scenario.SubtestResult{
		Name:     "engine out at heading 270",
		Passed:   false,
		Kind:     scenario.KindAssertion,
		Detail:   "landed 62.0 m from target, outside [0, 50]",
		Duration: 93 * time.Second,
	}
	if err = store.RecordResult(ctx, "run-1", result); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	landing := scenario.Landing{
		Subtest:  result.Name,
		Location: vehicle.Location{Latitude: 36.8165, Longitude: -2.8688},
		Target:   vehicle.Location{Latitude: 36.8164241, Longitude: -2.868918},
		Distance: 62.0,
	}
	if err = store.RecordLanding(ctx, "run-1", landing); err != nil {
		t.Fatalf("RecordLanding failed: %v", err)
	}

	run, err := store.Run(ctx, runID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run == nil || run.RunUID != "run-1" {
		t.Fatalf("Unexpected run: %+v", run)
	}
	if !run.Config.Valid || run.Config.String != `{"seed":7}` {
		t.Errorf("Unexpected run config: %+v", run.Config)
	}

	results, err := store.Results(ctx, runID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Name != result.Name || results[0].Passed ||
		results[0].Kind.String != scenario.KindAssertion ||
		results[0].DurationMS != 93000 {
		t.Errorf("Unexpected result row: %+v", results[0])
	}

	landings, err := store.Landings(ctx, runID)
	if err != nil {
		t.Fatalf("Landings failed: %v", err)
	}
	if len(landings) != 1 {
		t.Fatalf("Expected 1 landing, got %d", len(landings))
	}
	if landings[0].DistanceM != 62.0 || landings[0].Subtest != result.Name {
		t.Errorf("Unexpected landing row: %+v", landings[0])
	}
}

func TestStore_EnsureRunCreatesImplicitly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Recording against an unknown run UID creates the run row.
	result := scenario.SubtestResult{Name: "prearm checks", Passed: true, Duration: time.Second}
	if err := store.RecordResult(ctx, "implicit", result); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunUID != "implicit" {
		t.Fatalf("Expected one implicit run, got %+v", runs)
	}

	// A second record reuses the same run.
	if err = store.RecordResult(ctx, "implicit", result); err != nil {
		t.Fatalf("Second RecordResult failed: %v", err)
	}
	results, err := store.Results(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results under one run, got %d", len(results))
	}
}

func TestStore_RunNotFound(t *testing.T) {
	store := newTestStore(t)

	// Touch the write side so the database file exists for the
	// read-only connection.
	if _, err := store.CreateRun(context.Background(), "run-1", nil); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	run, err := store.Run(context.Background(), 999)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run != nil {
		t.Errorf("Expected nil for a missing run, got %+v", run)
	}
}
