// Package kvstore is an embedded BadgerDB implementation of history.Backend.
//
// Layout:
//
//	snap/<id>                 JSON snapshot
//	loc/<locationKey>/<ts><id> location index, ascending by capture time
//	ts/<ts><id>               global time index, used by retention
//
// <id> and <ts> are big-endian uint64 so lexical order is numeric order.
package kvstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/lox/weathertrack/internal/models"
)

var (
	prefixSnap = []byte("snap/")
	prefixLoc  = []byte("loc/")
	prefixTS   = []byte("ts/")
	seqKey     = []byte("seq/snapshots")

	errClosed = errors.New("kvstore closed")
)

const seqBandwidth = 100

// deleteBatch bounds how many snapshots one retention transaction removes,
// keeping each well under badger's transaction size limit.
var deleteBatch = 1000

type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

type Store struct {
	cfg Config

	mu  sync.RWMutex
	db  *badger.DB
	seq *badger.Sequence
}

func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Init opens the database. Calling it on an open store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Join(s.cfg.Path, "badger"))
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		db.Close()
		return fmt.Errorf("open id sequence: %w", err)
	}

	s.db, s.seq = db, seq
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}

	seqErr := s.seq.Release()
	dbErr := s.db.Close()
	s.db, s.seq = nil, nil
	if seqErr != nil {
		return fmt.Errorf("release id sequence: %w", seqErr)
	}
	return dbErr
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func snapKey(id int64) []byte {
	return concat(prefixSnap, u64(uint64(id)))
}

func locPrefix(locationKey string) []byte {
	return concat(prefixLoc, []byte(locationKey), []byte("/"))
}

func locKey(snap models.Snapshot) []byte {
	return concat(locPrefix(snap.LocationKey), u64(uint64(snap.Timestamp)), u64(uint64(snap.ID)))
}

func tsKey(snap models.Snapshot) []byte {
	return concat(prefixTS, u64(uint64(snap.Timestamp)), u64(uint64(snap.ID)))
}

// idFromIndex reads the trailing id of a loc/ or ts/ key.
func idFromIndex(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// allocIDs reserves n snapshot IDs. IDs burned by a failed write are not
// reused.
func (s *Store) allocIDs(n int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.seq == nil {
		return nil, errClosed
	}

	ids := make([]int64, n)
	for i := range ids {
		v, err := s.seq.Next()
		if err != nil {
			return nil, fmt.Errorf("next id: %w", err)
		}
		// Sequences start at zero; snapshot IDs start at one.
		ids[i] = int64(v) + 1
	}
	return ids, nil
}

func putSnapshot(txn *badger.Txn, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %d: %w", snap.ID, err)
	}
	if err := txn.Set(snapKey(snap.ID), data); err != nil {
		return err
	}
	if err := txn.Set(locKey(snap), nil); err != nil {
		return err
	}
	return txn.Set(tsKey(snap), nil)
}

func deleteSnapshot(txn *badger.Txn, snap models.Snapshot) error {
	for _, k := range [][]byte{snapKey(snap.ID), locKey(snap), tsKey(snap)} {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func getSnapshot(txn *badger.Txn, id int64) (models.Snapshot, error) {
	var snap models.Snapshot
	item, err := txn.Get(snapKey(id))
	if err != nil {
		return snap, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	})
	return snap, err
}

// indexIDs collects snapshot IDs from index keys under prefix, starting at
// seek, while keep returns true.
func indexIDs(txn *badger.Txn, prefix, seek []byte, keep func(key []byte) bool) []int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []int64
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		if keep != nil && !keep(key) {
			break
		}
		ids = append(ids, idFromIndex(key))
	}
	return ids
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errClosed
	}
	return s.db.Update(fn)
}

func (s *Store) FindByLocationDate(ctx context.Context, key, date string) ([]models.Snapshot, error) {
	var out []models.Snapshot
	err := s.view(func(txn *badger.Txn) error {
		prefix := locPrefix(key)
		for _, id := range indexIDs(txn, prefix, prefix, nil) {
			snap, err := getSnapshot(txn, id)
			if err != nil {
				return fmt.Errorf("load snapshot %d: %w", id, err)
			}
			// A key containing "/" can share this prefix.
			if snap.LocationKey == key && snap.Date == date {
				out = append(out, snap)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find snapshots %s on %s: %w", key, date, err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, snap *models.Snapshot) error {
	ids, err := s.allocIDs(1)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	stored := *snap
	stored.ID = ids[0]

	if err := s.update(func(txn *badger.Txn) error {
		return putSnapshot(txn, stored)
	}); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snap.ID = stored.ID
	return nil
}

func (s *Store) Update(ctx context.Context, snap models.Snapshot) error {
	err := s.update(func(txn *badger.Txn) error {
		old, err := getSnapshot(txn, snap.ID)
		if err != nil {
			return err
		}
		if err := deleteSnapshot(txn, old); err != nil {
			return err
		}
		return putSnapshot(txn, snap)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("update snapshot %d: not found", snap.ID)
	}
	if err != nil {
		return fmt.Errorf("update snapshot %d: %w", snap.ID, err)
	}
	return nil
}

func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := cutoff.UnixMilli()

	var total int64
	for {
		var batch int
		err := s.update(func(txn *badger.Txn) error {
			var seen int
			ids := indexIDs(txn, prefixTS, prefixTS, func(key []byte) bool {
				ts := int64(binary.BigEndian.Uint64(key[len(prefixTS) : len(prefixTS)+8]))
				if ts >= limit || seen == deleteBatch {
					return false
				}
				seen++
				return true
			})
			for _, id := range ids {
				snap, err := getSnapshot(txn, id)
				if err != nil {
					return fmt.Errorf("load snapshot %d: %w", id, err)
				}
				if err := deleteSnapshot(txn, snap); err != nil {
					return err
				}
			}
			batch = len(ids)
			return nil
		})
		if err != nil {
			// Earlier batches are already committed.
			return total, fmt.Errorf("delete snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += int64(batch)
		if batch < deleteBatch {
			return total, nil
		}
	}
}

func (s *Store) ListByLocationSince(ctx context.Context, key string, since time.Time) ([]models.Snapshot, error) {
	var out []models.Snapshot
	err := s.view(func(txn *badger.Txn) error {
		prefix := locPrefix(key)
		seek := concat(prefix, u64(uint64(max(since.UnixMilli(), 0))))
		for _, id := range indexIDs(txn, prefix, seek, nil) {
			snap, err := getSnapshot(txn, id)
			if err != nil {
				return fmt.Errorf("load snapshot %d: %w", id, err)
			}
			if snap.LocationKey != key {
				continue
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) ([]models.Snapshot, error) {
	var out []models.Snapshot
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSnap
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixSnap); it.ValidForPrefix(prefixSnap); it.Next() {
			var snap models.Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list all snapshots: %w", err)
	}
	return out, nil
}

// BulkInsert writes every snapshot in a single transaction.
func (s *Store) BulkInsert(ctx context.Context, snaps []models.Snapshot) error {
	ids, err := s.allocIDs(len(snaps))
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	err = s.update(func(txn *badger.Txn) error {
		for i, snap := range snaps {
			snap.ID = ids[i]
			if err := putSnapshot(txn, snap); err != nil {
				return fmt.Errorf("snapshot %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}
	for i := range snaps {
		snaps[i].ID = ids[i]
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("clear snapshots: %w", errClosed)
	}
	if err := s.db.DropPrefix(prefixSnap, prefixLoc, prefixTS); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixSnap
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixSnap); it.ValidForPrefix(prefixSnap); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
