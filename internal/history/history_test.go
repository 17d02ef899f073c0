package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
)

func record(id, container string, started time.Time) core.RunRecord {
	return core.RunRecord{
		ID:         id,
		Container:  container,
		DocumentID: "doc",
		Pages:      []string{"Items", "Units"},
		State:      core.StateCompleted,
		Records:    3,
		Warnings:   1,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		IPAddress:  "10.0.0.1",
	}
}

// exerciseStore runs the behaviour every RunStore must share.
func exerciseStore(t *testing.T, store core.RunStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, record("r1", "definitions", base)))
	require.NoError(t, store.SaveRun(ctx, record("r2", "definitions", base.Add(time.Hour))))
	require.NoError(t, store.SaveRun(ctx, record("r3", "localization", base.Add(2*time.Hour))))

	all, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	defs, err := store.ListRuns(ctx, "definitions", 1)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	got := defs[0]
	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, []string{"Items", "Units"}, got.Pages)
	assert.Equal(t, core.StateCompleted, got.State)
	assert.Equal(t, 3, got.Records)
	assert.Equal(t, "10.0.0.1", got.IPAddress)
	assert.True(t, got.StartedAt.Equal(base.Add(time.Hour)), "started_at = %v", got.StartedAt)

	// Saving the same id replaces the outcome.
	updated := record("r1", "definitions", base)
	updated.State = core.StateFailed
	updated.Error = "boom"
	require.NoError(t, store.SaveRun(ctx, updated))
	defs, err = store.ListRuns(ctx, "definitions", 10)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, core.StateFailed, defs[1].State)
	assert.Equal(t, "boom", defs[1].Error)

	n, err := store.PruneRuns(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "r3", left[0].ID)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.db")
	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.Equal(t, path, store.Path())
	exerciseStore(t, store)
}

func TestSQLiteStore_Memory(t *testing.T) {
	store, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exerciseStore(t, store)
}

// TestPostgresStore needs a scratch database; it truncates import_runs.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := OpenPostgres(ctx, config.HistoryConfig{
		DatabaseURL:     url,
		MaxConns:        2,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.pool.Exec(ctx, "TRUNCATE import_runs")
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestMemoryStore_CopiesPages(t *testing.T) {
	store := NewMemoryStore()
	rec := record("r1", "definitions", time.Now())
	require.NoError(t, store.SaveRun(context.Background(), rec))

	rec.Pages[0] = "changed"
	runs, err := store.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Items", runs[0].Pages[0])
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.HistoryConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, config.HistoryConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.HistoryConfig{Driver: "mongo"})
	assert.Error(t, err)
}
