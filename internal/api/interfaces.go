package api

import (
	"context"
	"time"

	"github.com/lox/weathertrack/internal/ingest"
	"github.com/lox/weathertrack/internal/models"
	"github.com/lox/weathertrack/internal/owm"
	"github.com/lox/weathertrack/internal/store"
)

// Weather is the read-only weather service surface. owm.Client implements it.
type Weather interface {
	Forecast(ctx context.Context, lat, lon float64) (*owm.Forecast, error)
	AirPollution(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
	SearchCities(ctx context.Context, query string, limit int) ([]models.City, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.City, error)
}

// Refresher fetches current conditions and records them. ingest.Tracker
// implements it.
type Refresher interface {
	Refresh(ctx context.Context, lat, lon float64, name string) (*ingest.Report, error)
}

// AppState holds favorites, the last viewed location and the refresh audit.
// store.Store implements it.
type AppState interface {
	ListFavorites(ctx context.Context) ([]models.Favorite, error)
	AddFavorite(ctx context.Context, name string, lat, lon float64) (bool, error)
	RemoveFavorite(ctx context.Context, id string) error

	SaveLocation(ctx context.Context, lat, lon float64, name string) (models.SavedLocation, error)
	LastLocation(ctx context.Context) (*models.SavedLocation, error)
	ClearLocation(ctx context.Context) error

	GetRefreshHealth(ctx context.Context, since time.Time) ([]store.RefreshHealth, error)
	GetRecentRefreshErrors(ctx context.Context, limit int) ([]store.RefreshRun, error)
	MigrationVersion() (int, error)
}
