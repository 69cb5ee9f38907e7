package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"time"

	"github.com/lox/weathertrack/internal/metrics"
	"github.com/lox/weathertrack/internal/models"
)

// Export serialises every stored snapshot as an indented JSON array.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	if err := s.checkReady(); err != nil {
		return nil, fmt.Errorf("export history: %w", err)
	}

	all, err := s.backend.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export history: %w", unavailable(err))
	}
	if all == nil {
		all = []models.Snapshot{}
	}

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export history: marshal: %w", err)
	}
	return out, nil
}

// Import parses an exported blob and inserts every snapshot with a fresh ID.
// Nothing is written unless the whole blob is valid. Existing data is not
// checked for duplicates.
func (s *Store) Import(ctx context.Context, data []byte) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, fmt.Errorf("import history: %w", err)
	}

	snaps, err := decodeSnapshots(data)
	if err != nil {
		return 0, fmt.Errorf("import history: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	if err := s.backend.BulkInsert(ctx, snaps); err != nil {
		return 0, fmt.Errorf("import history: %w", unavailable(err))
	}
	metrics.SnapshotsImported.Add(float64(len(snaps)))
	log.Printf("history: imported %d snapshots", len(snaps))
	return len(snaps), nil
}

func decodeSnapshots(data []byte) ([]models.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var snaps []models.Snapshot
	if err := dec.Decode(&snaps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after snapshot list", ErrFormat)
	}
	if snaps == nil {
		return nil, fmt.Errorf("%w: expected a list of snapshots", ErrFormat)
	}

	for i := range snaps {
		if err := validateSnapshot(snaps[i]); err != nil {
			return nil, fmt.Errorf("%w: snapshot %d: %v", ErrFormat, i, err)
		}
		snaps[i].ID = 0
	}
	return snaps, nil
}

// locationKeyPattern is the shape models.LocationKey produces.
var locationKeyPattern = regexp.MustCompile(`^-?\d+\.\d{2},-?\d+\.\d{2}$`)

func validateSnapshot(s models.Snapshot) error {
	if s.LocationKey == "" {
		return errors.New("missing locationKey")
	}
	if !locationKeyPattern.MatchString(s.LocationKey) {
		return fmt.Errorf("bad locationKey %q", s.LocationKey)
	}
	if s.Timestamp <= 0 {
		return errors.New("missing timestamp")
	}
	if _, err := time.Parse(dateLayout, s.Date); err != nil {
		return fmt.Errorf("bad date %q", s.Date)
	}
	return nil
}
