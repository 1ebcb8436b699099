package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	saveCheckpointSQL = `INSERT INTO checkpoints (run_id, version, state, pending_nodes, last_error, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (run_id) DO UPDATE SET
	   version = EXCLUDED.version, state = EXCLUDED.state, pending_nodes = EXCLUDED.pending_nodes,
	   last_error = EXCLUDED.last_error, updated_at = EXCLUDED.updated_at`
	loadCheckpointSQL = `SELECT run_id, version, state, pending_nodes, last_error, created_at, updated_at FROM checkpoints WHERE run_id = $1`
	deleteCheckpointSQL = `DELETE FROM checkpoints WHERE run_id = $1`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"save_checkpoint":   saveCheckpointSQL,
	"load_checkpoint":   loadCheckpointSQL,
	"delete_checkpoint": deleteCheckpointSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id        TEXT PRIMARY KEY,
	version       TEXT NOT NULL,
	state         JSONB NOT NULL,
	pending_nodes JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_error    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_updated_at ON checkpoints(updated_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	stamp(cp)
	state, pending, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, saveCheckpointSQL,
		cp.RunID, cp.Version, state, pending, cp.LastError, cp.CreatedAt, cp.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save checkpoint %s", cp.RunID)
}

func (s *PostgresStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, loadCheckpointSQL, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load checkpoint %s", runID)
	}
	return cp, nil
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx, deleteCheckpointSQL, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete checkpoint %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}

func (s *PostgresStore) ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]model.Checkpoint, error) {
	query, args, err := checkpointListQuery(filter).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list checkpoints")
	}
	defer rows.Close()

	var out []model.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan checkpoint")
		}
		out = append(out, *cp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate checkpoints")
}
