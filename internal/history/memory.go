package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

var errMemoryClosed = errors.New("memory backend closed")

// MemoryBackend keeps snapshots in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[int64]models.Snapshot
	nextID int64
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[int64]models.Snapshot)}
}

func (m *MemoryBackend) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
	return nil
}

func (m *MemoryBackend) FindByLocationDate(ctx context.Context, key, date string) ([]models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errMemoryClosed
	}

	var out []models.Snapshot
	for _, s := range m.data {
		if s.LocationKey == key && s.Date == date {
			out = append(out, s)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryBackend) Insert(ctx context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMemoryClosed
	}

	m.nextID++
	snap.ID = m.nextID
	m.data[snap.ID] = *snap
	return nil
}

func (m *MemoryBackend) Update(ctx context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMemoryClosed
	}

	if _, ok := m.data[snap.ID]; !ok {
		return fmt.Errorf("update snapshot %d: not found", snap.ID)
	}
	m.data[snap.ID] = snap
	return nil
}

func (m *MemoryBackend) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errMemoryClosed
	}

	limit := cutoff.UnixMilli()
	var n int64
	for id, s := range m.data {
		if s.Timestamp < limit {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) ListByLocationSince(ctx context.Context, key string, since time.Time) ([]models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errMemoryClosed
	}

	limit := since.UnixMilli()
	var out []models.Snapshot
	for _, s := range m.data {
		if s.LocationKey == key && s.Timestamp >= limit {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryBackend) ListAll(ctx context.Context) ([]models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errMemoryClosed
	}

	out := make([]models.Snapshot, 0, len(m.data))
	for _, s := range m.data {
		out = append(out, s)
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryBackend) BulkInsert(ctx context.Context, snaps []models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMemoryClosed
	}

	for i := range snaps {
		m.nextID++
		snaps[i].ID = m.nextID
		m.data[snaps[i].ID] = snaps[i]
	}
	return nil
}

func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMemoryClosed
	}
	m.data = make(map[int64]models.Snapshot)
	return nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errMemoryClosed
	}
	return len(m.data), nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func sortByID(s []models.Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}
