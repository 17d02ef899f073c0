package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	container    TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	pages        TEXT[] NOT NULL DEFAULT '{}',
	state        TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	records      INTEGER NOT NULL DEFAULT 0,
	warnings     INTEGER NOT NULL DEFAULT 0,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	ip_address   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS import_runs_container_started_idx ON import_runs (container, started_at DESC);
CREATE INDEX IF NOT EXISTS import_runs_finished_idx ON import_runs (finished_at);
`

// PostgresStore keeps run records in the import_runs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool with the configured limits and creates the
// table if needed.
func OpenPostgres(ctx context.Context, cfg config.HistoryConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("history database connected",
		"max_conns", poolConfig.MaxConns,
		"min_conns", poolConfig.MinConns,
	)
	return store, nil
}

// NewPostgresStore wraps an existing pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the import_runs table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create import_runs: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, rec core.RunRecord) error {
	pages := rec.Pages
	if pages == nil {
		pages = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_runs (id, container, document_id, pages, state, error, records, warnings, started_at, finished_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			records = EXCLUDED.records,
			warnings = EXCLUDED.warnings,
			finished_at = EXCLUDED.finished_at`,
		rec.ID, rec.Container, rec.DocumentID, pages, string(rec.State), rec.Error,
		rec.Records, rec.Warnings, rec.StartedAt, rec.FinishedAt, rec.IPAddress, rec.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, container string, limit int) ([]core.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, container, document_id, pages, state, error, records, warnings, started_at, finished_at, ip_address, user_agent
		FROM import_runs
		WHERE $1 = '' OR container = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`, container, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.RunRecord, error) {
		var (
			r     core.RunRecord
			state string
		)
		err := row.Scan(&r.ID, &r.Container, &r.DocumentID, &r.Pages, &state, &r.Error,
			&r.Records, &r.Warnings, &r.StartedAt, &r.FinishedAt, &r.IPAddress, &r.UserAgent)
		r.State = core.RunState(state)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
