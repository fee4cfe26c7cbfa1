package storage

import (
	"database/sql"
	"time"
)

// RunData represents one scenario suite run.
type RunData struct {
	ID        int64
	RunUID    string
	StartTime time.Time
	Config    sql.NullString
}

// ResultData represents a single subtest outcome within a run.
type ResultData struct {
	ID         int64
	RunID      int64
	Name       string
	Passed     bool
	Kind       sql.NullString
	Detail     sql.NullString
	DurationMS int64
	CreatedAt  time.Time
}

// LandingData represents where one mission variant touched down
// relative to its target.
type LandingData struct {
	ID              int64
	RunID           int64
	Subtest         string
	Latitude        float64
	Longitude       float64
	TargetLatitude  float64
	TargetLongitude float64
	DistanceM       float64
	CreatedAt       time.Time
}
