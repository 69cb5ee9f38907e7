// Package api serves the JSON surface presentation layers use: current
// weather, the daily forecast, air quality, history and saved places.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/weathertrack/internal/history"
)

const DefaultRateLimit = 120

type Server struct {
	weather   Weather
	tracker   Refresher
	history   *history.Store
	state     AppState
	port      string
	rateLimit int
}

type Option func(*Server)

// WithRateLimit sets the per-IP request budget per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.rateLimit = perMinute
		}
	}
}

func NewServer(weather Weather, tracker Refresher, hist *history.Store, state AppState, port string, opts ...Option) *Server {
	s := &Server{
		weather:   weather,
		tracker:   tracker,
		history:   hist,
		state:     state,
		port:      port,
		rateLimit: DefaultRateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/weather", s.handleWeather)
		r.Get("/forecast", s.handleForecast)
		r.Get("/air", s.handleAir)
		r.Get("/cities", s.handleCities)
		r.Get("/cities/reverse", s.handleReverseGeocode)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Delete("/", s.handleClearHistory)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Post("/sample", s.handleSample)
			r.Get("/info", s.handleHistoryInfo)
		})

		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Delete("/favorites/{id}", s.handleRemoveFavorite)

		r.Get("/location", s.handleGetLocation)
		r.Put("/location", s.handleSaveLocation)
		r.Delete("/location", s.handleClearLocation)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
