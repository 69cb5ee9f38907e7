package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lox/weathertrack/internal/forecast"
	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/ingest"
	"github.com/lox/weathertrack/internal/models"
	"github.com/lox/weathertrack/internal/owm"
	"github.com/lox/weathertrack/internal/store"
)

type HealthStatus struct {
	Status  string                `json:"status"`
	Schema  int                   `json:"schemaVersion,omitempty"`
	History *history.Info         `json:"history,omitempty"`
	Refresh []store.RefreshHealth `json:"refresh"`
	Errors  []string              `json:"errors,omitempty"`
	// RecentFailures lists the latest failed upstream fetches when degraded.
	RecentFailures []string `json:"recentFailures,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", Refresh: []store.RefreshHealth{}}

	if info, err := s.history.Info(r.Context()); err != nil {
		health.Errors = append(health.Errors, "history: "+err.Error())
	} else {
		health.History = &info
	}

	if s.state != nil {
		if v, err := s.state.MigrationVersion(); err != nil {
			health.Errors = append(health.Errors, "schema: "+err.Error())
		} else {
			health.Schema = v
		}

		rh, err := s.state.GetRefreshHealth(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			health.Errors = append(health.Errors, "refresh: "+err.Error())
		} else {
			health.Refresh = rh
			for _, h := range rh {
				if h.TotalRuns > 0 && h.SuccessRuns == 0 {
					health.Status = "degraded"
				}
			}
		}
		if health.Status == "degraded" {
			health.RecentFailures = s.recentFailures(r.Context())
		}
	}

	if len(health.Errors) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) recentFailures(ctx context.Context) []string {
	runs, err := s.state.GetRecentRefreshErrors(ctx, 5)
	if err != nil {
		log.Printf("api: recent refresh errors: %v", err)
		return nil
	}
	var out []string
	for _, run := range runs {
		where := run.Endpoint
		if run.LocationKey.Valid {
			where += " " + run.LocationKey.String
		}
		out = append(out, fmt.Sprintf("%s %s: %s", run.StartedAt.Format(time.RFC3339), where, run.ErrorMessage.String))
	}
	return out
}

// upstreamStatus maps weather service failures to a response code.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, owm.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, owm.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type weatherResponse struct {
	*ingest.Report
	HistoryDegraded bool `json:"historyDegraded,omitempty"`
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.tracker.Refresh(r.Context(), lat, lon, r.URL.Query().Get("name"))
	if report == nil {
		log.Printf("api: weather %s: %v", models.LocationKey(lat, lon), err)
		writeError(w, upstreamStatus(err), "weather unavailable")
		return
	}

	resp := weatherResponse{Report: report}
	if err != nil {
		// The weather is still good; only the history write failed.
		log.Printf("api: weather %s: %v", report.LocationKey, err)
		resp.HistoryDegraded = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type forecastResponse struct {
	City  string                `json:"city,omitempty"`
	Daily []models.DailySummary `json:"daily"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fc, err := s.weather.Forecast(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: forecast %s: %v", models.LocationKey(lat, lon), err)
		writeError(w, upstreamStatus(err), "forecast unavailable")
		return
	}

	daily, err := forecast.Summarize(fc.List)
	if err != nil {
		log.Printf("api: summarize forecast: %v", err)
		writeError(w, http.StatusBadGateway, "malformed forecast")
		return
	}
	writeJSON(w, http.StatusOK, forecastResponse{City: fc.City.Name, Daily: daily})
}

type airResponse struct {
	Air   *models.AirQuality `json:"air"`
	Level *owm.AQILevel      `json:"level,omitempty"`
}

func (s *Server) handleAir(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	air, err := s.weather.AirPollution(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: air quality %s: %v", models.LocationKey(lat, lon), err)
		writeError(w, upstreamStatus(err), "air quality unavailable")
		return
	}

	resp := airResponse{Air: air}
	if air != nil {
		if level, ok := owm.LookupAQI(air.AQI); ok {
			resp.Level = &level
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveInt(r.URL.Query().Get("limit"), "limit", 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cities, err := s.weather.SearchCities(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		log.Printf("api: search cities: %v", err)
		writeError(w, upstreamStatus(err), "city search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	city, err := s.weather.ReverseGeocode(r.Context(), lat, lon)
	if err != nil {
		log.Printf("api: reverse geocode %s: %v", models.LocationKey(lat, lon), err)
		writeError(w, upstreamStatus(err), "geocoding unavailable")
		return
	}
	if city == nil {
		writeError(w, http.StatusNotFound, "no place found")
		return
	}
	writeJSON(w, http.StatusOK, city)
}
