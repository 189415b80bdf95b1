package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationWriter persists the violation audit trail.
type ViolationWriter interface {
	CopyInsert(ctx context.Context, records []model.ViolationRecord) error
	Insert(ctx context.Context, record model.ViolationRecord) error
}

// ViolationWorker consumes persist_violations_queue and bulk-copies records to PostgreSQL.
type ViolationWorker struct {
	b *batcher[model.ViolationRecord]
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(store ViolationWriter, rdb *redis.Client, batchSize int, log zerolog.Logger) *ViolationWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ViolationWorker{b: &batcher[model.ViolationRecord]{
		rdb:        rdb,
		queue:      config.WorkerKey.PersistViolationsQueue,
		size:       batchSize,
		retryDelay: RetryDelay,
		log:        log.With().Str("component", "violation_worker").Logger(),
		bulk:       store.CopyInsert,
		single:     store.Insert,
		valid: func(r model.ViolationRecord) bool {
			return r.StudentID > 0 && r.SetID != uuid.Nil && r.Violation.Reason.Valid()
		},
	}}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}
