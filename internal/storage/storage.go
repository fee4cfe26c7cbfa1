// Package storage persists scenario runs, subtest results and
// landing records in a sqlite database. Writes go through a WAL
// connection, reads through a separate read-only connection; both are
// opened lazily.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cgreigagts/engout-harness/internal/scenario"
)

// Store handles database operations. It implements
// scenario.Recorder, so a runner can stream results into it as they
// complete.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	mu     sync.Mutex
	runIDs map[string]int64 // run UID -> rowid

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the database at dbPath. Connections
// are opened on first use.
func New(dbPath string) *Store {
	return &Store{
		dbPath: dbPath,
		runIDs: make(map[string]int64),
	}
}

func runSQLCommand(db *sql.DB, command string) error {
	_, err := db.Exec(command)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", s.dbPath))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateRun inserts a new run row and returns its rowid. The config
// can be a string, []byte, or any JSON-serializable value.
func (s *Store) CreateRun(ctx context.Context, runUID string, config any) (int64, error) {
	var configData sql.NullString
	switch v := config.(type) {
	case nil:
	case string:
		configData = sql.NullString{String: v, Valid: true}
	case []byte:
		configData = sql.NullString{String: string(v), Valid: true}
	default:
		p, err := json.Marshal(config)
		if err != nil {
			return 0, fmt.Errorf("marshaling config: %w", err)
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, insertRunSQL, runUID, configData)
	if err != nil {
		return 0, fmt.Errorf("creating run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	s.mu.Lock()
	s.runIDs[runUID] = id
	s.mu.Unlock()
	return id, nil
}

// ensureRun resolves a run UID to its rowid, creating the run row if
// the runner never called CreateRun explicitly.
func (s *Store) ensureRun(ctx context.Context, runUID string) (int64, error) {
	s.mu.Lock()
	id, ok := s.runIDs[runUID]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	var run RunData
	err = db.QueryRowContext(ctx, selectRunByUIDSQL, runUID).
		Scan(&run.ID, &run.RunUID, &run.StartTime, &run.Config)
	switch {
	case err == nil:
		s.mu.Lock()
		s.runIDs[runUID] = run.ID
		s.mu.Unlock()
		return run.ID, nil

	case errors.Is(err, sql.ErrNoRows):
		return s.CreateRun(ctx, runUID, nil)

	default:
		return 0, fmt.Errorf("resolving run %s: %w", runUID, err)
	}
}

// RecordResult stores a subtest result under the given run UID.
func (s *Store) RecordResult(ctx context.Context, runUID string, result scenario.SubtestResult) error {
	runID, err := s.ensureRun(ctx, runUID)
	if err != nil {
		return err
	}

	db, err := s.getWriteDB()
	if err != nil {
		return err
	}

	kind := sql.NullString{String: result.Kind, Valid: result.Kind != ""}
	detail := sql.NullString{String: result.Detail, Valid: result.Detail != ""}

	if _, err = db.ExecContext(ctx, insertResultSQL,
		runID, result.Name, result.Passed, kind, detail,
		result.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("storing result %q: %w", result.Name, err)
	}
	return nil
}

// RecordLanding stores a landing record under the given run UID.
func (s *Store) RecordLanding(ctx context.Context, runUID string, landing scenario.Landing) error {
	runID, err := s.ensureRun(ctx, runUID)
	if err != nil {
		return err
	}

	db, err := s.getWriteDB()
	if err != nil {
		return err
	}

	if _, err = db.ExecContext(ctx, insertLandingSQL,
		runID, landing.Subtest,
		landing.Location.Latitude, landing.Location.Longitude,
		landing.Target.Latitude, landing.Target.Longitude,
		landing.Distance); err != nil {
		return fmt.Errorf("storing landing for %q: %w", landing.Subtest, err)
	}
	return nil
}

// Run retrieves a run by rowid. Returns nil when not found.
func (s *Store) Run(ctx context.Context, id int64) (*RunData, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	var run RunData
	err = db.QueryRowContext(ctx, selectRunSQL, id).
		Scan(&run.ID, &run.RunUID, &run.StartTime, &run.Config)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading run %d: %w", id, err)
	}
	return &run, nil
}

// Runs returns all runs ordered by start time.
func (s *Store) Runs(ctx context.Context) ([]*RunData, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunData
	for rows.Next() {
		var run RunData
		if err = rows.Scan(&run.ID, &run.RunUID, &run.StartTime, &run.Config); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Results returns the subtest results of a run in execution order.
func (s *Store) Results(ctx context.Context, runID int64) ([]ResultData, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectResultsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	defer rows.Close()

	var results []ResultData
	for rows.Next() {
		var r ResultData
		if err = rows.Scan(&r.ID, &r.RunID, &r.Name, &r.Passed, &r.Kind,
			&r.Detail, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Landings returns the landing records of a run in execution order.
func (s *Store) Landings(ctx context.Context, runID int64) ([]LandingData, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectLandingsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("reading landings: %w", err)
	}
	defer rows.Close()

	var landings []LandingData
	for rows.Next() {
		var l LandingData
		if err = rows.Scan(&l.ID, &l.RunID, &l.Subtest, &l.Latitude, &l.Longitude,
			&l.TargetLatitude, &l.TargetLongitude, &l.DistanceM, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning landing: %w", err)
		}
		landings = append(landings, l)
	}
	return landings, rows.Err()
}

// Close releases all database connections. Safe to call multiple
// times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.writeDB != nil {
			if err := s.writeDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing write connection: %w", err))
			}
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing read connection: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// interface guard
var _ scenario.Recorder = (*Store)(nil)
