package pricesnapshots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/materialwatch/internal/domain"
)

const (
	DefaultDir           = "./wal/prices"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 20
	snapshotKey          = "price_snapshot"
	segmentPrefix        = "prices_"
)

// WALStore journals price snapshots for the running session so stream clients can
// catch up from any index. Journal segments from a previous run are removed on open, so
// prices never survive a restart; other files in the directory are left alone.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes an empty WAL-backed snapshot journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create price journal dir")
	}
	if err := removeSegments(dir); err != nil {
		return nil, errors.Wrap(err, "reset price journal")
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           segmentPrefix,
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: false,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init price snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the snapshot and returns its journal index.
func (s *WALStore) Save(snapshot domain.PriceSnapshot) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("price snapshot store is not initialized")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return 0, errors.Wrap(err, "marshal price snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, snapshotKey, payload); err != nil {
		return 0, errors.Wrap(err, "write price snapshot")
	}
	return nextIndex, nil
}

// SnapshotsAfter returns all snapshots written after the provided WAL index.
// Entries rotated out of the journal are skipped.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.PriceSnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("price snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.PriceSnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKey) {
			continue
		}
		var snapshot domain.PriceSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode price snapshot")
		}
		records = append(records, domain.PriceSnapshotRecord{
			Index:    idx,
			Snapshot: snapshot,
		})
	}

	return records, nil
}

// Latest returns the most recent snapshot, if any.
func (s *WALStore) Latest() (domain.PriceSnapshotRecord, bool, error) {
	current := s.CurrentIndex()
	if current == 0 {
		return domain.PriceSnapshotRecord{}, false, nil
	}

	records, err := s.SnapshotsAfter(current - 1)
	if err != nil {
		return domain.PriceSnapshotRecord{}, false, err
	}
	if len(records) == 0 {
		return domain.PriceSnapshotRecord{}, false, nil
	}
	return records[len(records)-1], true, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("price snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

// removeSegments deletes the journal segment files of a previous session.
func removeSegments(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(e.Name(), segmentPrefix)
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
