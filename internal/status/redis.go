package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lava-submitter/internal/config"
	"lava-submitter/internal/core"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "lava:run:"

// RedisPublisher stores the latest snapshot of a run and its history so
// other pipeline jobs can watch it.
type RedisPublisher struct {
	cli *redis.Client
	ttl time.Duration
}

var _ core.StatusSink = (*RedisPublisher)(nil)

func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig) (*RedisPublisher, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPublisher{cli: c, ttl: ttl}, nil
}

func StateKey(runID string) string   { return keyPrefix + runID }
func HistoryKey(runID string) string { return keyPrefix + runID + ":history" }

// Publish overwrites the run state and appends to its history.
func (p *RedisPublisher) Publish(ctx context.Context, s core.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	pipe := p.cli.TxPipeline()
	pipe.Set(ctx, StateKey(s.RunID), b, p.ttl)
	pipe.RPush(ctx, HistoryKey(s.RunID), b)
	pipe.Expire(ctx, HistoryKey(s.RunID), p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// Latest returns the last published snapshot of runID.
func (p *RedisPublisher) Latest(ctx context.Context, runID string) (core.Snapshot, error) {
	var s core.Snapshot
	b, err := p.cli.Get(ctx, StateKey(runID)).Bytes()
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(b, &s)
	return s, err
}

// History returns every snapshot of runID in publish order.
func (p *RedisPublisher) History(ctx context.Context, runID string) ([]core.Snapshot, error) {
	raw, err := p.cli.LRange(ctx, HistoryKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]core.Snapshot, 0, len(raw))
	for _, r := range raw {
		var s core.Snapshot
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *RedisPublisher) Close() error { return p.cli.Close() }
