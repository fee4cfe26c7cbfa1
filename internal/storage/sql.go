package storage

import (
	_ "embed"
)

const (
	insertRunSQL = `
INSERT INTO runs (run_uid, start_time, config)
VALUES (?, CURRENT_TIMESTAMP, ?)`

	selectRunByUIDSQL = `
SELECT
    id,
    run_uid,
    start_time,
    config
FROM runs
WHERE
    run_uid = ?`

	selectRunSQL = `
SELECT
    id,
    run_uid,
    start_time,
    config
FROM runs
WHERE
    id = ?`

	selectRunsSQL = `
SELECT
    id,
    run_uid,
    start_time,
    config
FROM runs
ORDER BY start_time`

	insertResultSQL = `
INSERT INTO results (run_id,
                     name,
                     passed,
                     kind,
                     detail,
                     duration_ms)
VALUES (?, ?, ?, ?, ?, ?)`

	selectResultsSQL = `
SELECT
    id,
    run_id,
    name,
    passed,
    kind,
    detail,
    duration_ms,
    created_at
FROM results
WHERE
    run_id = ?
ORDER BY id`

	insertLandingSQL = `
INSERT INTO landings (run_id,
                      subtest,
                      latitude,
                      longitude,
                      target_latitude,
                      target_longitude,
                      distance_m)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectLandingsSQL = `
SELECT
    id,
    run_id,
    subtest,
    latitude,
    longitude,
    target_latitude,
    target_longitude,
    distance_m,
    created_at
FROM landings
WHERE
    run_id = ?
ORDER BY id`
)

//go:embed schema.sql
var schemaSQL string
