package ingest

import (
	"context"
	"log"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

const (
	DefaultInterval = 15 * time.Minute
	refreshTimeout  = 45 * time.Second
)

// Locations lists the places worth polling. store.Store implements it.
type Locations interface {
	ListFavorites(ctx context.Context) ([]models.Favorite, error)
	LastLocation(ctx context.Context) (*models.SavedLocation, error)
}

type refresher interface {
	Refresh(ctx context.Context, lat, lon float64, name string) (*Report, error)
}

type target struct {
	lat, lon float64
	name     string
}

// Scheduler keeps the history of every favorite and the last viewed location
// warm. The store deduplicates by hour, so polling more often than hourly
// only refreshes the current hour's snapshot.
type Scheduler struct {
	tracker   refresher
	locations Locations
	interval  time.Duration
}

func NewScheduler(tracker *Tracker, locations Locations, interval time.Duration) *Scheduler {
	return newScheduler(tracker, locations, interval)
}

func newScheduler(r refresher, locations Locations, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{tracker: r, locations: locations, interval: interval}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.RefreshAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes each tracked location once, sequentially, and returns
// how many succeeded.
func (s *Scheduler) RefreshAll(ctx context.Context) int {
	targets, err := s.targets(ctx)
	if err != nil {
		log.Printf("scheduler: list locations: %v", err)
		return 0
	}
	if len(targets) == 0 {
		return 0
	}

	log.Printf("scheduler: refreshing %d locations", len(targets))
	ok := 0
	for _, tg := range targets {
		if ctx.Err() != nil {
			break
		}
		rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		report, err := s.tracker.Refresh(rctx, tg.lat, tg.lon, tg.name)
		cancel()
		if err != nil {
			log.Printf("scheduler: refresh %s: %v", models.LocationKey(tg.lat, tg.lon), err)
			continue
		}
		ok++
		if report != nil && report.Current != nil {
			log.Printf("scheduler: %s: %.1f°", report.Name, report.Current.Main.Temp)
		}
	}
	return ok
}

// targets merges favorites with the last viewed location, one entry per
// location key.
func (s *Scheduler) targets(ctx context.Context) ([]target, error) {
	favs, err := s.locations.ListFavorites(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []target
	add := func(lat, lon float64, name string) {
		key := models.LocationKey(lat, lon)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, target{lat: lat, lon: lon, name: name})
	}

	for _, f := range favs {
		add(f.Lat, f.Lon, f.Name)
	}

	last, err := s.locations.LastLocation(ctx)
	if err != nil {
		log.Printf("scheduler: last location: %v", err)
	} else if last != nil {
		add(last.Lat, last.Lon, last.Name)
	}
	return out, nil
}
