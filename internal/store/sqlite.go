package store

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Writers share one connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id        TEXT PRIMARY KEY,
	version       TEXT NOT NULL,
	state         TEXT NOT NULL,
	pending_nodes TEXT NOT NULL DEFAULT '[]',
	last_error    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_updated_at ON checkpoints(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	stamp(cp)
	state, pending, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, version, state, pending_nodes, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET
		   version = excluded.version, state = excluded.state, pending_nodes = excluded.pending_nodes,
		   last_error = excluded.last_error, updated_at = excluded.updated_at`,
		cp.RunID, cp.Version, string(state), string(pending), cp.LastError, cp.CreatedAt, cp.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save checkpoint %s", cp.RunID)
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, version, state, pending_nodes, last_error, created_at, updated_at
		 FROM checkpoints WHERE run_id = ?`,
		runID,
	)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load checkpoint %s", runID)
	}
	return cp, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete checkpoint %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return notFound(runID)
	}
	return nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]model.Checkpoint, error) {
	query, args, err := checkpointListQuery(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list checkpoints")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan checkpoint")
		}
		out = append(out, *cp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate checkpoints")
}

// checkpointListQuery builds the newest-first listing shared by the SQL backends.
func checkpointListQuery(filter CheckpointFilter) sq.SelectBuilder {
	q := sq.Select("run_id", "version", "state", "pending_nodes", "last_error", "created_at", "updated_at").
		From("checkpoints").
		OrderBy("updated_at DESC").
		Limit(listLimit(filter))
	if !filter.UpdatedAfter.IsZero() {
		q = q.Where(sq.Gt{"updated_at": filter.UpdatedAfter.UTC()})
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// scannable is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	var state, pending []byte
	if err := row.Scan(&cp.RunID, &cp.Version, &state, &pending, &cp.LastError, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeCheckpoint(&cp, state, pending); err != nil {
		return nil, err
	}
	return &cp, nil
}
