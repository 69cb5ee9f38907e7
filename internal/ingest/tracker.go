// Package ingest refreshes locations from the weather service and records
// every successful current-weather fetch in the history store.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/weathertrack/internal/forecast"
	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/metrics"
	"github.com/lox/weathertrack/internal/models"
	"github.com/lox/weathertrack/internal/owm"
	"github.com/lox/weathertrack/internal/store"
)

// WeatherSource is the subset of owm.Client a refresh needs.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*owm.CurrentWeather, error)
	Forecast(ctx context.Context, lat, lon float64) (*owm.Forecast, error)
	AirPollution(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
}

// RunRecorder audits upstream fetches. store.Store implements it.
type RunRecorder interface {
	StartRefreshRun(ctx context.Context, endpoint, locationKey string) (*store.RefreshRun, error)
	CompleteRefreshRun(ctx context.Context, run *store.RefreshRun, runErr error) error
}

// Report is everything one refresh learned about a location. Forecast and air
// quality are optional; Daily and Air are nil when those fetches failed.
type Report struct {
	LocationKey  string                    `json:"locationKey"`
	Name         string                    `json:"name"`
	FetchedAt    time.Time                 `json:"fetchedAt"`
	Current      *owm.CurrentWeather       `json:"current"`
	Condition    forecast.WeatherCondition `json:"condition"`
	TimeOfDay    forecast.TimeOfDay        `json:"timeOfDay"`
	QualityFlags []string                  `json:"qualityFlags,omitempty"`
	Daily        []models.DailySummary     `json:"daily"`
	Air          *models.AirQuality        `json:"air"`
	AirLevel     *owm.AQILevel             `json:"airLevel,omitempty"`
	Snapshot     *models.Snapshot          `json:"snapshot,omitempty"`
}

type Tracker struct {
	weather WeatherSource
	history *history.Store
	runs    RunRecorder
}

// NewTracker wires a tracker. hist and runs may be nil, in which case nothing
// is saved or audited.
func NewTracker(weather WeatherSource, hist *history.Store, runs RunRecorder) *Tracker {
	return &Tracker{weather: weather, history: hist, runs: runs}
}

// Refresh fetches current weather, forecast and air quality for the point in
// parallel. Current weather is required; the other two degrade to nil. The
// observation is saved to history, and a save failure is returned alongside a
// complete report so callers can still show the weather.
func (t *Tracker) Refresh(ctx context.Context, lat, lon float64, name string) (*Report, error) {
	key := models.LocationKey(lat, lon)

	var (
		current *owm.CurrentWeather
		fc      *owm.Forecast
		air     *models.AirQuality
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return t.record(gCtx, "weather", key, func() error {
			cw, err := t.weather.Current(gCtx, lat, lon)
			if err != nil {
				return err
			}
			current = cw
			return nil
		})
	})

	g.Go(func() error {
		err := t.record(gCtx, "forecast", key, func() error {
			f, err := t.weather.Forecast(gCtx, lat, lon)
			if err != nil {
				return err
			}
			fc = f
			return nil
		})
		if err != nil {
			log.Printf("ingest: forecast %s: %v", key, err)
		}
		return nil
	})

	g.Go(func() error {
		err := t.record(gCtx, "air_pollution", key, func() error {
			a, err := t.weather.AirPollution(gCtx, lat, lon)
			if err != nil {
				return err
			}
			air = a
			return nil
		})
		if err != nil {
			log.Printf("ingest: air quality %s: %v", key, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh %s: %w", key, err)
	}

	if strings.TrimSpace(name) == "" {
		name = current.Name
	}

	obs := current.Observation()
	cond := obs.PrimaryCondition()
	report := &Report{
		LocationKey: key,
		Name:        name,
		FetchedAt:   time.Now(),
		Current:     current,
		Condition:   forecast.Categorize(cond.Main, cond.Description, obs.Main.TempMax, obs.Main.TempMin),
		TimeOfDay:   timeOfDay(current, cond.Icon),
		Air:         air,
	}

	if flags := ValidateObservation(obs); len(flags) > 0 {
		report.QualityFlags = flags
		for _, f := range flags {
			metrics.ObservationFlags.WithLabelValues(f).Inc()
		}
		log.Printf("ingest: %s observation flagged: %s", key, strings.Join(flags, ","))
	}

	if fc != nil {
		daily, err := forecast.Summarize(fc.List)
		if err != nil {
			log.Printf("ingest: summarize forecast %s: %v", key, err)
		} else {
			report.Daily = daily
		}
	}

	if air != nil {
		if level, ok := owm.LookupAQI(air.AQI); ok {
			report.AirLevel = &level
		}
	}

	status := "ok"
	if fc == nil || air == nil {
		status = "degraded"
	}

	if t.history != nil {
		snap, err := t.history.Save(ctx, lat, lon, name, obs)
		if err != nil {
			metrics.RefreshTotal.WithLabelValues("degraded").Inc()
			return report, fmt.Errorf("refresh %s: %w", key, err)
		}
		report.Snapshot = &snap
	}

	metrics.RefreshTotal.WithLabelValues(status).Inc()
	return report, nil
}

// timeOfDay prefers the local clock at the place, which also yields dawn and
// dusk, and falls back to the icon's day/night suffix.
func timeOfDay(current *owm.CurrentWeather, icon string) forecast.TimeOfDay {
	if local, ok := current.LocalTime(); ok {
		return forecast.GetTimeOfDay(local)
	}
	return forecast.TimeOfDayFromIcon(icon)
}

// record runs fetch inside an audited refresh run. Audit failures are logged
// and never fail the fetch.
func (t *Tracker) record(ctx context.Context, endpoint, key string, fetch func() error) error {
	if t.runs == nil {
		return fetch()
	}

	run, err := t.runs.StartRefreshRun(ctx, endpoint, key)
	if err != nil {
		log.Printf("ingest: start %s run: %v", endpoint, err)
	}

	fetchErr := fetch()

	// The fetch may have been cancelled; the audit row should still close.
	if err := t.runs.CompleteRefreshRun(context.WithoutCancel(ctx), run, fetchErr); err != nil {
		log.Printf("ingest: complete %s run: %v", endpoint, err)
	}
	return fetchErr
}
