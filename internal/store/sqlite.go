// Package store is the SQLite persistence layer: weather snapshots (as a
// history.Backend), favorites, the last viewed location and the refresh audit
// log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/weathertrack/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a SQLite database file. ":memory:" is accepted and
// pinned to a single connection so every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Init applies pending migrations.
func (s *Store) Init(ctx context.Context) error {
	return s.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const snapshotColumns = `id, location_key, location_name, timestamp, date, temp, temp_min, temp_max, feels_like, humidity, pressure, wind_speed, precipitation, weather_condition, weather_icon, weather_description`

const insertSnapshot = `
	INSERT INTO snapshots (location_key, location_name, timestamp, date, temp, temp_min, temp_max, feels_like, humidity, pressure, wind_speed, precipitation, weather_condition, weather_icon, weather_description)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (models.Snapshot, error) {
	var s models.Snapshot
	err := row.Scan(&s.ID, &s.LocationKey, &s.LocationName, &s.Timestamp, &s.Date, &s.Temp, &s.TempMin, &s.TempMax, &s.FeelsLike, &s.Humidity, &s.Pressure, &s.WindSpeed, &s.Precipitation, &s.WeatherCondition, &s.WeatherIcon, &s.WeatherDescription)
	return s, err
}

func snapshotArgs(s models.Snapshot) []any {
	return []any{s.LocationKey, s.LocationName, s.Timestamp, s.Date, s.Temp, s.TempMin, s.TempMax, s.FeelsLike, s.Humidity, s.Pressure, s.WindSpeed, s.Precipitation, s.WeatherCondition, s.WeatherIcon, s.WeatherDescription}
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *Store) FindByLocationDate(ctx context.Context, key, date string) ([]models.Snapshot, error) {
	snaps, err := s.querySnapshots(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE location_key = ? AND date = ?
		ORDER BY id ASC
	`, key, date)
	if err != nil {
		return nil, fmt.Errorf("find snapshots %s on %s: %w", key, date, err)
	}
	return snaps, nil
}

func (s *Store) Insert(ctx context.Context, snap *models.Snapshot) error {
	result, err := s.db.ExecContext(ctx, insertSnapshot, snapshotArgs(*snap)...)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert snapshot: last id: %w", err)
	}
	snap.ID = id
	return nil
}

func (s *Store) Update(ctx context.Context, snap models.Snapshot) error {
	args := append(snapshotArgs(snap), snap.ID)
	result, err := s.db.ExecContext(ctx, `
		UPDATE snapshots SET
			location_key = ?,
			location_name = ?,
			timestamp = ?,
			date = ?,
			temp = ?,
			temp_min = ?,
			temp_max = ?,
			feels_like = ?,
			humidity = ?,
			pressure = ?,
			wind_speed = ?,
			precipitation = ?,
			weather_condition = ?,
			weather_icon = ?,
			weather_description = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update snapshot %d: %w", snap.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update snapshot %d: %w", snap.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update snapshot %d: not found", snap.ID)
	}
	return nil
}

func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return result.RowsAffected()
}

func (s *Store) ListByLocationSince(ctx context.Context, key string, since time.Time) ([]models.Snapshot, error) {
	snaps, err := s.querySnapshots(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE location_key = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`, key, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list snapshots %s: %w", key, err)
	}
	return snaps, nil
}

func (s *Store) ListAll(ctx context.Context) ([]models.Snapshot, error) {
	snaps, err := s.querySnapshots(ctx, `SELECT `+snapshotColumns+` FROM snapshots ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all snapshots: %w", err)
	}
	return snaps, nil
}

// BulkInsert writes snaps in one transaction.
func (s *Store) BulkInsert(ctx context.Context, snaps []models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSnapshot)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(snaps))
	for i, snap := range snaps {
		result, err := stmt.ExecContext(ctx, snapshotArgs(snap)...)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("bulk insert snapshot %d: %w", i, err)
		}
		if ids[i], err = result.LastInsertId(); err != nil {
			tx.Rollback()
			return fmt.Errorf("bulk insert snapshot %d: last id: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	for i := range snaps {
		snaps[i].ID = ids[i]
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
