package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

const MaxFavorites = 10

func (s *Store) ListFavorites(ctx context.Context) ([]models.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, lat, lon, added_at
		FROM favorites
		ORDER BY added_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favs := []models.Favorite{}
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.Name, &f.Lat, &f.Lon, &f.AddedAt); err != nil {
			return nil, err
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// AddFavorite stores a favorite and reports whether it was added. It returns
// false without error when the location is already a favorite or the list is
// full.
func (s *Store) AddFavorite(ctx context.Context, name string, lat, lon float64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin add favorite: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites`).Scan(&count); err != nil {
		return false, fmt.Errorf("count favorites: %w", err)
	}
	if count >= MaxFavorites {
		return false, nil
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO favorites (id, name, lat, lon, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, models.FavoriteID(lat, lon), name, lat, lon, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit add favorite: %w", err)
	}
	return true, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove favorite %s: %w", id, err)
	}
	return nil
}

func (s *Store) IsFavorite(ctx context.Context, lat, lon float64) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM favorites WHERE id = ?`, models.FavoriteID(lat, lon)).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup favorite: %w", err)
	}
	return true, nil
}

// ToggleFavorite removes the location if it is a favorite, otherwise adds it.
// It returns whether the location is a favorite afterwards.
func (s *Store) ToggleFavorite(ctx context.Context, name string, lat, lon float64) (bool, error) {
	fav, err := s.IsFavorite(ctx, lat, lon)
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.RemoveFavorite(ctx, models.FavoriteID(lat, lon))
	}
	return s.AddFavorite(ctx, name, lat, lon)
}
