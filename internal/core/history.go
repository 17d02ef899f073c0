package core

import (
	"context"
	"time"
)

// RunRecord is the persisted summary of a finished import run.
type RunRecord struct {
	ID         string    `json:"id"`
	Container  string    `json:"container"`
	DocumentID string    `json:"documentId"`
	Pages      []string  `json:"pages"`
	State      RunState  `json:"state"`
	Error      string    `json:"error,omitempty"`
	Records    int       `json:"records"`
	Warnings   int       `json:"warnings"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// NewRunRecord summarizes result. pages is the requested page list, which
// is longer than result.Pages when the run stopped early.
func NewRunRecord(result RunResult, pages []string, meta RequestMetadata) RunRecord {
	return RunRecord{
		ID:         result.RunID,
		Container:  result.Container,
		DocumentID: result.DocumentID,
		Pages:      append([]string(nil), pages...),
		State:      result.State,
		Error:      result.Error,
		Records:    result.Records(),
		Warnings:   len(result.Warnings),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
}

// RunStore persists run records.
type RunStore interface {
	// SaveRun inserts or replaces a record by ID.
	SaveRun(ctx context.Context, rec RunRecord) error
	// ListRuns returns the newest records first. An empty container lists all.
	ListRuns(ctx context.Context, container string, limit int) ([]RunRecord, error)
	// PruneRuns deletes records that finished before cutoff.
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// discardStore is used when no store is configured.
type discardStore struct{}

func (discardStore) SaveRun(context.Context, RunRecord) error { return nil }

func (discardStore) ListRuns(context.Context, string, int) ([]RunRecord, error) { return nil, nil }

func (discardStore) PruneRuns(context.Context, time.Time) (int64, error) { return 0, nil }

func (discardStore) Close() error { return nil }
