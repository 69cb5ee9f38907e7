package history

import (
	"context"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

// Backend is the persistence engine behind a Store. Implementations serialise
// their own writes; Store adds no locking on top.
type Backend interface {
	// Init prepares the backend (schema migrations, directories).
	Init(ctx context.Context) error

	// FindByLocationDate returns every snapshot with the given key and date.
	FindByLocationDate(ctx context.Context, key, date string) ([]models.Snapshot, error)

	// Insert stores a new snapshot and sets its ID.
	Insert(ctx context.Context, snap *models.Snapshot) error

	// Update overwrites the snapshot with snap.ID.
	Update(ctx context.Context, snap models.Snapshot) error

	// DeleteBefore removes snapshots captured strictly before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListByLocationSince returns the key's snapshots captured at or after
	// since, ascending by capture time.
	ListByLocationSince(ctx context.Context, key string, since time.Time) ([]models.Snapshot, error)

	// ListAll returns every snapshot ordered by ID.
	ListAll(ctx context.Context) ([]models.Snapshot, error)

	// BulkInsert stores all snapshots or none of them, assigning IDs in place.
	BulkInsert(ctx context.Context, snaps []models.Snapshot) error

	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}
