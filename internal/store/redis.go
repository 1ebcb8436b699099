package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires idle checkpoints. Zero keeps them forever.
	TTL time.Duration
}

// RedisStore implements Store with one JSON string key per run and a sorted
// set index ordered by update time.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return newRedisStore(client, opts), nil
}

func newRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "blogpipeline:"
	}
	return &RedisStore{client: client, keyPrefix: prefix, ttl: opts.TTL}
}

func (s *RedisStore) checkpointKey(runID string) string {
	return s.keyPrefix + "checkpoint:" + runID
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "checkpoints"
}

// Migrate is a no-op; Redis needs no schema.
func (s *RedisStore) Migrate(context.Context) error { return nil }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	stamp(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return eris.Wrap(err, "redis: marshal checkpoint")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.checkpointKey(cp.RunID), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(cp.UpdatedAt.UnixNano()), Member: cp.RunID})
		return nil
	})
	return eris.Wrapf(err, "redis: save checkpoint %s", cp.RunID)
}

func (s *RedisStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: load checkpoint %s", runID)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, eris.Wrapf(err, "redis: unmarshal checkpoint %s", runID)
	}
	return &cp, nil
}

func (s *RedisStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.checkpointKey(runID))
		pipe.ZRem(ctx, s.indexKey(), runID)
		return nil
	})
	if err != nil {
		return eris.Wrapf(err, "redis: delete checkpoint %s", runID)
	}
	if del.Val() == 0 {
		return notFound(runID)
	}
	return nil
}

func (s *RedisStore) ListCheckpoints(ctx context.Context, filter CheckpointFilter) ([]model.Checkpoint, error) {
	minScore := "-inf"
	if !filter.UpdatedAfter.IsZero() {
		minScore = fmt.Sprintf("(%d", filter.UpdatedAfter.UnixNano())
	}
	ids, err := s.client.ZRevRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min:    minScore,
		Max:    "+inf",
		Offset: int64(filter.Offset),
		Count:  int64(listLimit(filter)),
	}).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list checkpoint ids")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.checkpointKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list checkpoints")
	}

	out := make([]model.Checkpoint, 0, len(vals))
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Expired by TTL; drop it from the index.
			stale = append(stale, ids[i])
			continue
		}
		var cp model.Checkpoint
		if err := json.Unmarshal([]byte(str), &cp); err != nil {
			return nil, eris.Wrapf(err, "redis: unmarshal checkpoint %s", ids[i])
		}
		out = append(out, cp)
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(), stale...) //nolint:errcheck
	}
	return out, nil
}
