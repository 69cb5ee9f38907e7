// Package history keeps a rolling, hour-deduplicated series of weather
// snapshots per location and prunes anything older than the retention window.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lox/weathertrack/internal/metrics"
	"github.com/lox/weathertrack/internal/models"
)

var (
	// ErrStorageUnavailable wraps any failure of the underlying engine, and is
	// returned directly when the store is not initialised or already closed.
	ErrStorageUnavailable = errors.New("history storage unavailable")

	// ErrFormat is returned by Import for data that is not a snapshot list.
	ErrFormat = errors.New("invalid history data format")
)

const (
	DefaultRetentionDays = 30
	DefaultHistoryDays   = 7

	dateLayout = "2006-01-02"

	// bytesPerSnapshot is a rough on-disk estimate used by Info.
	bytesPerSnapshot = 200
)

// Clock supplies the current time. Tests swap it to cross hour and day
// boundaries without waiting.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Option func(*Store)

func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLocation sets the zone used to derive a snapshot's date and hour.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithRetention(days int) Option {
	return func(s *Store) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithRand sets the random source used by GenerateSample.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

type Store struct {
	backend       Backend
	clock         Clock
	loc           *time.Location
	retentionDays int

	rngMu sync.Mutex
	rng   *rand.Rand

	ready atomic.Bool
}

// New builds a Store over backend. Call Init before use.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		clock:         systemClock{},
		loc:           time.Local,
		retentionDays: DefaultRetentionDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

func (s *Store) Init(ctx context.Context) error {
	if s.backend == nil {
		return fmt.Errorf("init history: no backend: %w", ErrStorageUnavailable)
	}
	if err := s.backend.Init(ctx); err != nil {
		return fmt.Errorf("init history: %w", unavailable(err))
	}
	s.ready.Store(true)
	return nil
}

func (s *Store) Close() error {
	if !s.ready.Swap(false) {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) RetentionDays() int { return s.retentionDays }

func (s *Store) checkReady() error {
	if !s.ready.Load() {
		return ErrStorageUnavailable
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func unavailable(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// Save records obs for the location. A snapshot already captured in the same
// hour of the same day is overwritten in place; otherwise a new one is added.
// A retention cleanup follows every successful write; its failure is logged
// and does not affect the result.
func (s *Store) Save(ctx context.Context, lat, lon float64, name string, obs models.Observation) (models.Snapshot, error) {
	if err := s.checkReady(); err != nil {
		return models.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	key := models.LocationKey(lat, lon)
	now := s.now()
	today := now.Format(dateLayout)

	candidates, err := s.backend.FindByLocationDate(ctx, key, today)
	if err != nil {
		metrics.SnapshotsSaved.WithLabelValues("error").Inc()
		return models.Snapshot{}, fmt.Errorf("save snapshot %s: find existing: %w", key, unavailable(err))
	}

	var (
		snap  models.Snapshot
		found bool
	)
	for _, c := range candidates {
		if c.Time().In(s.loc).Hour() == now.Hour() {
			snap, found = c, true
			break
		}
	}

	if found {
		snap.Timestamp = now.UnixMilli()
		snap.ApplyObservation(obs)
		if err := s.backend.Update(ctx, snap); err != nil {
			metrics.SnapshotsSaved.WithLabelValues("error").Inc()
			return models.Snapshot{}, fmt.Errorf("save snapshot %s: update %d: %w", key, snap.ID, unavailable(err))
		}
		metrics.SnapshotsSaved.WithLabelValues("update").Inc()
	} else {
		snap = models.Snapshot{
			LocationKey:  key,
			LocationName: name,
			Timestamp:    now.UnixMilli(),
			Date:         today,
		}
		snap.ApplyObservation(obs)
		if err := s.backend.Insert(ctx, &snap); err != nil {
			metrics.SnapshotsSaved.WithLabelValues("error").Inc()
			return models.Snapshot{}, fmt.Errorf("save snapshot %s: insert: %w", key, unavailable(err))
		}
		metrics.SnapshotsSaved.WithLabelValues("insert").Inc()
	}

	if _, err := s.Cleanup(ctx); err != nil {
		metrics.CleanupFailures.Inc()
		log.Printf("history: cleanup after save for %s: %v", key, err)
	}

	return snap, nil
}

// Cleanup deletes every snapshot older than the retention window.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.backend.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup before %s: %w", cutoff.Format(time.RFC3339), unavailable(err))
	}
	if n > 0 {
		metrics.SnapshotsPruned.Add(float64(n))
		log.Printf("history: pruned %d snapshots older than %d days", n, s.retentionDays)
	}
	return n, nil
}

// History returns the location's snapshots from the last days days, oldest
// first. Unknown locations yield an empty slice.
func (s *Store) History(ctx context.Context, lat, lon float64, days int) ([]models.Snapshot, error) {
	if err := s.checkReady(); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	key := models.LocationKey(lat, lon)
	cutoff := s.now().AddDate(0, 0, -days)

	snaps, err := s.backend.ListByLocationSince(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", key, unavailable(err))
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	return snaps, nil
}

// Clear removes every snapshot for every location.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.checkReady(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", unavailable(err))
	}
	log.Println("history: cleared all snapshots")
	return nil
}

type Info struct {
	Count          int    `json:"count"`
	EstimatedBytes uint64 `json:"estimatedBytes"`
	EstimatedSize  string `json:"estimatedSize"`
}

// Info reports how many snapshots are stored and a rough size estimate.
func (s *Store) Info(ctx context.Context) (Info, error) {
	if err := s.checkReady(); err != nil {
		return Info{}, fmt.Errorf("history info: %w", err)
	}
	n, err := s.backend.Count(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("history info: %w", unavailable(err))
	}
	size := uint64(n) * bytesPerSnapshot
	return Info{
		Count:          n,
		EstimatedBytes: size,
		EstimatedSize:  humanize.IBytes(size),
	}, nil
}
