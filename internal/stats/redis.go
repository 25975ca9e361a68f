package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyGenerationCount = "docgen:stats:generation_count"
	keyLastGeneration  = "docgen:stats:last_generation"
	keyLastHealth      = "docgen:stats:last_health"
	keyModePrefix      = "docgen:stats:mode:"
)

// RedisRecorder persists generation stats in Redis so counts survive
// restarts and are shared across replicas.
type RedisRecorder struct {
	client *redis.Client
}

func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{client: client}
}

func (r *RedisRecorder) RecordGeneration(ctx context.Context, mode string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, keyGenerationCount)
	pipe.Incr(ctx, keyModePrefix+mode)
	pipe.Set(ctx, keyLastGeneration, now, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording generation: %w", err)
	}
	return nil
}

func (r *RedisRecorder) TouchHealth(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.client.Set(ctx, keyLastHealth, now, 0).Err(); err != nil {
		return fmt.Errorf("recording health touch: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{ByMode: make(map[string]int64)}

	count, err := r.client.Get(ctx, keyGenerationCount).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reading generation count: %w", err)
	}
	snap.GenerationCount = count

	if ts, err := r.client.Get(ctx, keyLastGeneration).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			snap.LastGenerationTime = t
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("reading last generation time: %w", err)
	}

	if ts, err := r.client.Get(ctx, keyLastHealth).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			snap.LastHealthTime = t
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("reading last health time: %w", err)
	}

	keys, err := r.client.Keys(ctx, keyModePrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("listing mode counters: %w", err)
	}
	for _, key := range keys {
		n, err := r.client.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("reading mode counter %s: %w", key, err)
		}
		snap.ByMode[key[len(keyModePrefix):]] = n
	}
	return snap, nil
}
