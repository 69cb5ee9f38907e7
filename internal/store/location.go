package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

// SaveLocation records the last viewed location, replacing any previous one.
func (s *Store) SaveLocation(ctx context.Context, lat, lon float64, name string) (models.SavedLocation, error) {
	loc := models.SavedLocation{Lat: lat, Lon: lon, Name: name, Timestamp: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_location (id, lat, lon, name, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			name = excluded.name,
			saved_at = excluded.saved_at
	`, loc.Lat, loc.Lon, loc.Name, loc.Timestamp)
	if err != nil {
		return models.SavedLocation{}, fmt.Errorf("save location: %w", err)
	}
	return loc, nil
}

// LastLocation returns nil when no location has been saved.
func (s *Store) LastLocation(ctx context.Context) (*models.SavedLocation, error) {
	var loc models.SavedLocation
	err := s.db.QueryRowContext(ctx, `SELECT lat, lon, name, saved_at FROM saved_location WHERE id = 1`).
		Scan(&loc.Lat, &loc.Lon, &loc.Name, &loc.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last location: %w", err)
	}
	return &loc, nil
}

func (s *Store) ClearLocation(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_location`); err != nil {
		return fmt.Errorf("clear location: %w", err)
	}
	return nil
}
