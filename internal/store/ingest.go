package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RefreshRun is one audited upstream fetch made while refreshing a location.
type RefreshRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Endpoint     string // "weather", "forecast", "air_pollution"
	LocationKey  sql.NullString
	Success      bool
	ErrorMessage sql.NullString
}

func (s *Store) StartRefreshRun(ctx context.Context, endpoint, locationKey string) (*RefreshRun, error) {
	run := &RefreshRun{
		StartedAt: time.Now().UTC(),
		Endpoint:  endpoint,
	}
	if locationKey != "" {
		run.LocationKey = sql.NullString{String: locationKey, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (started_at, endpoint, location_key, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Endpoint, run.LocationKey)
	if err != nil {
		return nil, fmt.Errorf("start refresh run: %w", err)
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRefreshRun stamps the run finished. A nil runErr marks it successful.
func (s *Store) CompleteRefreshRun(ctx context.Context, run *RefreshRun, runErr error) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	run.Success = runErr == nil
	if runErr != nil {
		run.ErrorMessage = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_runs SET
			finished_at = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Success, run.ErrorMessage, run.ID)
	if err != nil {
		return fmt.Errorf("complete refresh run %d: %w", run.ID, err)
	}
	return nil
}

// RefreshHealth is a per-endpoint tally over a time window.
type RefreshHealth struct {
	Endpoint    string `json:"endpoint"`
	TotalRuns   int    `json:"totalRuns"`
	SuccessRuns int    `json:"successRuns"`
	FailedRuns  int    `json:"failedRuns"`
}

func (s *Store) GetRefreshHealth(ctx context.Context, since time.Time) ([]RefreshHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			endpoint,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs
		FROM refresh_runs
		WHERE SUBSTR(started_at, 1, 19) >= ?
		GROUP BY endpoint
		ORDER BY endpoint
	`, since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("refresh health: %w", err)
	}
	defer rows.Close()

	results := []RefreshHealth{}
	for rows.Next() {
		var h RefreshHealth
		if err := rows.Scan(&h.Endpoint, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

func (s *Store) GetRecentRefreshErrors(ctx context.Context, limit int) ([]RefreshRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, endpoint, location_key, success, error_message
		FROM refresh_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent refresh errors: %w", err)
	}
	defer rows.Close()

	var results []RefreshRun
	for rows.Next() {
		var r RefreshRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Endpoint,
			&r.LocationKey, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
