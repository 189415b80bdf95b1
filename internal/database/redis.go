package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// NewRedisClient creates and validates a Redis client connection.
// Redis carries the set cache, answer autosave, attempt starts, worker queues
// and the proctor monitor channels.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	// Each live session holds no dedicated connection; workers hold one per BLPOP.
	if opt.PoolSize == 0 {
		opt.PoolSize = int(cfg.MaxDBConns) * 4
	}
	// Keep connections warm for the burst of autosaves when a set opens.
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = int(cfg.MaxDBConns)
	}
	if opt.ClientName == "" {
		opt.ClientName = "exstem-proctor"
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int("pool_size", opt.PoolSize).
		Int("min_idle", opt.MinIdleConns).
		Msg("Redis connected")

	return rdb, nil
}
