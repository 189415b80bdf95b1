package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const attemptAnswersTTL = 24 * time.Hour

// AutosaveService mirrors selections into Redis and queues them for the
// persistence worker.
type AutosaveService struct {
	answers AnswerStore
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewAutosaveService creates a new AutosaveService.
func NewAutosaveService(answers AnswerStore, rdb *redis.Client, log zerolog.Logger) *AutosaveService {
	return &AutosaveService{
		answers: answers,
		rdb:     rdb,
		log:     log.With().Str("component", "autosave_service").Logger(),
	}
}

// SaveAnswer writes the selection to the attempt hash and enqueues it for PostgreSQL.
func (s *AutosaveService) SaveAnswer(ctx context.Context, sc model.SessionContext, questionID uuid.UUID, option int) error {
	payload, err := json.Marshal(model.AnswerPayload{
		StudentID: sc.StudentID,
		SetID:     sc.SetID,
		QID:       questionID,
		Option:    option,
	})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := config.CacheKey.AttemptAnswersKey(sc.SetID.String(), sc.StudentID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, questionID.String(), option)
	pipe.Expire(ctx, key, attemptAnswersTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("autosave answer: %w", err)
	}
	return nil
}

// Restore returns the saved selections in question order. Redis is read
// first; PostgreSQL is consulted when the hash is gone.
func (s *AutosaveService) Restore(ctx context.Context, sc model.SessionContext, questions []model.Question) ([]*int, error) {
	saved, err := s.fromCache(ctx, sc)
	if err != nil {
		s.log.Warn().Err(err).Msg("Redis error reading answers, falling back to database")
	}
	if len(saved) == 0 {
		saved, err = s.answers.ListBySetAndStudent(ctx, sc.SetID, sc.StudentID)
		if err != nil {
			return nil, fmt.Errorf("list answers: %w", err)
		}
	}

	out := make([]*int, len(questions))
	for i, q := range questions {
		opt, ok := saved[q.ID]
		if !ok || opt < 0 || opt >= len(q.Options) {
			continue
		}
		out[i] = &opt
	}
	return out, nil
}

func (s *AutosaveService) fromCache(ctx context.Context, sc model.SessionContext) (map[uuid.UUID]int, error) {
	key := config.CacheKey.AttemptAnswersKey(sc.SetID.String(), sc.StudentID)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	saved := make(map[uuid.UUID]int, len(raw))
	for k, v := range raw {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		opt, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		saved[qid] = opt
	}
	return saved, nil
}
