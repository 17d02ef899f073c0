package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

// MemoryStore keeps run records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]core.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]core.RunRecord)}
}

func (m *MemoryStore) SaveRun(_ context.Context, rec core.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Pages = append([]string(nil), rec.Pages...)
	m.runs[rec.ID] = rec
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, container string, limit int) ([]core.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		if container == "" || r.Container == container {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PruneRuns(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.runs {
		if r.FinishedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
