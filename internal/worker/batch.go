package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultBatchSize = 50
	BatchTimeout     = 2 * time.Second
	PollTimeout      = 1 * time.Second // Must be >= 1s to satisfy Redis
	RetryDelay       = 2 * time.Second
	ShutdownTimeout  = 5 * time.Second
)

// batcher drains a Redis list into PostgreSQL. Items are buffered until the
// batch is full or BatchTimeout passes, written in bulk, retried row by row
// on failure and pushed back to the queue if the row write fails as well.
type batcher[T any] struct {
	rdb        *redis.Client
	queue      string
	size       int
	retryDelay time.Duration
	log        zerolog.Logger

	bulk   func(ctx context.Context, items []T) error
	single func(ctx context.Context, item T) error
	valid  func(item T) bool
}

func (b *batcher[T]) run(ctx context.Context) {
	b.log.Info().Str("queue", b.queue).Int("batch_size", b.size).Msg("Worker started")

	buffer := make([]T, 0, b.size)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= b.size || time.Since(lastFlush) >= BatchTimeout) {
			b.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		result, err := b.rdb.BLPop(ctx, PollTimeout, b.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				b.shutdown(buffer)
				return
			}
			b.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			b.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		if b.valid != nil && !b.valid(item) {
			b.log.Error().Str("data", result[1]).Msg("Discarding invalid item")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batcher[T]) flush(ctx context.Context, batch []T) {
	err := b.bulk(ctx, batch)
	if err == nil {
		return
	}
	b.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk write failed, attempting row-by-row recovery")

	var failed []T
	for _, item := range batch {
		if err := b.single(ctx, item); err != nil {
			b.log.Error().Err(err).Msg("Row write failed, requeueing")
			failed = append(failed, item)
		}
	}
	if len(failed) > 0 {
		b.requeue(ctx, failed)
	}
}

func (b *batcher[T]) requeue(ctx context.Context, items []T) {
	ctx = context.WithoutCancel(ctx)
	pipe := b.rdb.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, b.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	sleep(ctx, b.retryDelay)
}

func (b *batcher[T]) shutdown(buffer []T) {
	b.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if len(buffer) > 0 {
		b.flush(ctx, buffer)
	}
	b.log.Info().Msg("Worker stopped")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
