package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JonMunkholm/SheetImport/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	container   TEXT NOT NULL,
	document_id TEXT NOT NULL,
	pages       TEXT NOT NULL DEFAULT '[]',
	state       TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	records     INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS import_runs_container_started_idx ON import_runs (container, started_at DESC);
CREATE INDEX IF NOT EXISTS import_runs_finished_idx ON import_runs (finished_at);
`

// SQLiteStore keeps run records in a local SQLite file. Timestamps are
// stored as Unix nanoseconds.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		// WAL mode for concurrent readers while a run is being saved
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create import_runs: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) SaveRun(ctx context.Context, rec core.RunRecord) error {
	pages, err := json.Marshal(rec.Pages)
	if err != nil {
		return fmt.Errorf("encode pages: %w", err)
	}
	if rec.Pages == nil {
		pages = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, container, document_id, pages, state, error, records, warnings, started_at, finished_at, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			error = excluded.error,
			records = excluded.records,
			warnings = excluded.warnings,
			finished_at = excluded.finished_at`,
		rec.ID, rec.Container, rec.DocumentID, string(pages), string(rec.State), rec.Error,
		rec.Records, rec.Warnings, rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
		rec.IPAddress, rec.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, container string, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, container, document_id, pages, state, error, records, warnings, started_at, finished_at, ip_address, user_agent
		FROM import_runs
		WHERE ? = '' OR container = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, container, container, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.RunRecord
	for rows.Next() {
		var (
			r                 core.RunRecord
			pages, state      string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Container, &r.DocumentID, &pages, &state, &r.Error,
			&r.Records, &r.Warnings, &started, &finished, &r.IPAddress, &r.UserAgent); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(pages), &r.Pages); err != nil {
			return nil, fmt.Errorf("decode pages of %s: %w", r.ID, err)
		}
		r.State = core.RunState(state)
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_runs WHERE finished_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
