package pricesnapshots

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/materialwatch/internal/domain"
)

func snapshotAt(ts time.Time, price int64) domain.PriceSnapshot {
	m := domain.NewMaterial(1, "Steel Coil", "ton", decimal.NewFromInt(price), 5, ts)
	return domain.PriceSnapshot{
		Timestamp:  ts,
		Session:    "test",
		SelectedID: 1,
		Materials:  []domain.Material{m},
	}
}

func TestWALStore_SaveAndReadAfter(t *testing.T) {
	store, err := NewWALStore(filepath.Join(t.TempDir(), "prices"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, price := range []int64{5200, 5210, 5190} {
		idx, err := store.Save(snapshotAt(ts.Add(time.Duration(i)*time.Second), price))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), idx)
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	records, err := store.SnapshotsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(2), records[0].Index)
	assert.Equal(t, uint64(3), records[1].Index)
	assert.True(t, records[1].Snapshot.Materials[0].Price.Equal(decimal.NewFromInt(5190)))
	assert.Equal(t, "Steel Coil", records[1].Snapshot.Materials[0].Name)

	none, err := store.SnapshotsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)

	latest, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), latest.Index)
}

func TestWALStore_EmptyJournal(t *testing.T) {
	store, err := NewWALStore(filepath.Join(t.TempDir(), "prices"))
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_StartsEmptyEachSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prices")

	first, err := NewWALStore(dir)
	require.NoError(t, err)
	_, err = first.Save(snapshotAt(time.Now(), 5200))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewWALStore(dir)
	require.NoError(t, err)
	defer second.Close()

	assert.Zero(t, second.CurrentIndex())
	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestWALStore_KeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	first, err := NewWALStore(dir)
	require.NoError(t, err)
	_, err = first.Save(snapshotAt(time.Now(), 5200))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewWALStore(dir)
	require.NoError(t, err)
	defer second.Close()
	assert.Zero(t, second.CurrentIndex())

	body, err := os.ReadFile(notes)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(body))
	_, err = os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err)
}

func TestWALStore_NilStore(t *testing.T) {
	var store *WALStore

	_, err := store.Save(domain.PriceSnapshot{})
	assert.Error(t, err)
	_, err = store.SnapshotsAfter(0)
	assert.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
	assert.Error(t, store.Close())
}
