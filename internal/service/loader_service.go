package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// LoaderService loads question sets, keeping a Redis fast lane in front of PostgreSQL.
// The student-facing payload and the answer key are cached under separate keys.
type LoaderService struct {
	sets      SetStore
	questions QuestionStore
	rdb       *redis.Client
	ttl       time.Duration
	log       zerolog.Logger
}

// NewLoaderService creates a new LoaderService.
func NewLoaderService(sets SetStore, questions QuestionStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *LoaderService {
	return &LoaderService{
		sets:      sets,
		questions: questions,
		rdb:       rdb,
		ttl:       ttl,
		log:       log.With().Str("component", "loader_service").Logger(),
	}
}

// Load returns the set and its ordered questions.
func (s *LoaderService) Load(ctx context.Context, setID uuid.UUID) (*model.LoadedSet, error) {
	if loaded, ok := s.fromCache(ctx, setID); ok {
		return loaded, nil
	}

	loaded, err := s.fromDatabase(ctx, setID)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, loaded); err != nil {
		s.log.Warn().Err(err).Str("set_id", setID.String()).Msg("Failed to cache set")
	}
	return loaded, nil
}

// GetSet returns set metadata only.
func (s *LoaderService) GetSet(ctx context.Context, setID uuid.UUID) (*model.QuestionSet, error) {
	set, err := s.sets.GetByID(ctx, setID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get set: %w", err)
	}
	return set, nil
}

func (s *LoaderService) fromDatabase(ctx context.Context, setID uuid.UUID) (*model.LoadedSet, error) {
	var (
		wg        sync.WaitGroup
		set       *model.QuestionSet
		questions []model.Question
		setErr    error
		qErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		set, setErr = s.sets.GetByID(ctx, setID)
	}()
	go func() {
		defer wg.Done()
		questions, qErr = s.questions.ListBySet(ctx, setID)
	}()
	wg.Wait()

	if setErr != nil {
		return nil, fmt.Errorf("get set details: %w", setErr)
	}
	if qErr != nil {
		return nil, fmt.Errorf("get questions: %w", qErr)
	}

	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	if set.TotalQuestions != len(questions) {
		s.log.Warn().
			Str("set_id", setID.String()).
			Int("declared", set.TotalQuestions).
			Int("actual", len(questions)).
			Msg("Set question count mismatch, using question list length")
		set.TotalQuestions = len(questions)
	}

	return &model.LoadedSet{Set: *set, Questions: questions}, nil
}

func validateQuestions(questions []model.Question) error {
	if len(questions) == 0 {
		return errors.New("set has no questions")
	}
	for _, q := range questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s has %d options", q.ID, len(q.Options))
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return fmt.Errorf("question %s correct option %d out of range", q.ID, q.CorrectOptionIndex)
		}
	}
	return nil
}

func (s *LoaderService) fromCache(ctx context.Context, setID uuid.UUID) (*model.LoadedSet, bool) {
	pipe := s.rdb.Pipeline()
	payloadCmd := pipe.Get(ctx, config.CacheKey.SetPayloadKey(setID.String()))
	keyCmd := pipe.Get(ctx, config.CacheKey.SetAnswerKey(setID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Set cache unavailable")
		}
		return nil, false
	}

	var payload model.SetPayload
	if err := json.Unmarshal([]byte(payloadCmd.Val()), &payload); err != nil {
		return nil, false
	}
	var key []int
	if err := json.Unmarshal([]byte(keyCmd.Val()), &key); err != nil || len(key) != len(payload.Questions) {
		return nil, false
	}

	loaded := &model.LoadedSet{Set: payload.Set, Questions: make([]model.Question, len(payload.Questions))}
	for i, q := range payload.Questions {
		loaded.Questions[i] = model.Question{
			ID:                 q.ID,
			SetID:              payload.Set.ID,
			Text:               q.Text,
			Options:            q.Options,
			CorrectOptionIndex: key[i],
			OrderNum:           q.OrderNum,
		}
	}
	return loaded, true
}

func (s *LoaderService) store(ctx context.Context, loaded *model.LoadedSet) error {
	payload := model.SetPayload{Set: loaded.Set, Questions: make([]model.QuestionForStudent, len(loaded.Questions))}
	for i, q := range loaded.Questions {
		payload.Questions[i] = q.ForStudent()
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	keyJSON, err := json.Marshal(loaded.AnswerKey())
	if err != nil {
		return fmt.Errorf("marshal answer key: %w", err)
	}

	setID := loaded.Set.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.SetPayloadKey(setID), payloadJSON, s.ttl)
	pipe.Set(ctx, config.CacheKey.SetAnswerKey(setID), keyJSON, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

// WarmSet loads a set from PostgreSQL into the cache.
func (s *LoaderService) WarmSet(ctx context.Context, setID uuid.UUID) error {
	loaded, err := s.fromDatabase(ctx, setID)
	if err != nil {
		return err
	}
	if err := s.store(ctx, loaded); err != nil {
		return err
	}
	s.log.Debug().
		Str("set_id", setID.String()).
		Int("questions", len(loaded.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmExams warms every set of every exam. Sets that fail to load are logged and skipped.
func (s *LoaderService) PrewarmExams(ctx context.Context, exams ExamStore) error {
	ids, err := exams.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	warmed := 0
	for _, examID := range ids {
		sets, err := s.sets.ListByExam(ctx, examID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to list sets")
			continue
		}
		for _, set := range sets {
			if err := s.WarmSet(ctx, set.ID); err != nil {
				s.log.Warn().Err(err).Str("set_id", set.ID.String()).Msg("Failed to warm set")
				continue
			}
			warmed++
		}
	}

	s.log.Info().Int("exams", len(ids)).Int("sets", warmed).Msg("Set caches prewarmed")
	return nil
}
