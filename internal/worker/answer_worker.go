package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// AnswerWriter persists autosaved answers.
type AnswerWriter interface {
	UpsertBatch(ctx context.Context, rows []repository.AnswerRow) error
	Upsert(ctx context.Context, row repository.AnswerRow) error
}

// AnswerWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AnswerWorker struct {
	b *batcher[model.AnswerPayload]
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(store AnswerWriter, rdb *redis.Client, batchSize int, log zerolog.Logger) *AnswerWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &AnswerWorker{b: &batcher[model.AnswerPayload]{
		rdb:        rdb,
		queue:      config.WorkerKey.PersistAnswersQueue,
		size:       batchSize,
		retryDelay: RetryDelay,
		log:        log.With().Str("component", "answer_worker").Logger(),
		bulk: func(ctx context.Context, items []model.AnswerPayload) error {
			rows := make([]repository.AnswerRow, len(items))
			for i, p := range items {
				rows[i] = toAnswerRow(p)
			}
			return store.UpsertBatch(ctx, rows)
		},
		single: func(ctx context.Context, p model.AnswerPayload) error {
			return store.Upsert(ctx, toAnswerRow(p))
		},
		valid: func(p model.AnswerPayload) bool {
			return p.StudentID > 0 && p.SetID != uuid.Nil && p.QID != uuid.Nil && p.Option >= 0
		},
	}}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}

func toAnswerRow(p model.AnswerPayload) repository.AnswerRow {
	return repository.AnswerRow{
		StudentID:      p.StudentID,
		SetID:          p.SetID,
		QuestionID:     p.QID,
		SelectedOption: p.Option,
	}
}
