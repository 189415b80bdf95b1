package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const attemptStartTTL = 24 * time.Hour

// AttemptService records attempt starts. The start time anchors the session
// deadline, so a reconnect resumes the original countdown.
type AttemptService struct {
	attempts    AttemptStore
	submissions SubmissionStore
	monitor     *MonitorService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService. monitor may be nil.
func NewAttemptService(attempts AttemptStore, submissions SubmissionStore, monitor *MonitorService, rdb *redis.Client, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		submissions: submissions,
		monitor:     monitor,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Begin returns the student's attempt at the set, creating it on first entry.
// It is idempotent: repeated calls return the original start time.
func (s *AttemptService) Begin(ctx context.Context, studentID int, examID, setID uuid.UUID) (*model.Attempt, error) {
	done, err := s.submissions.Exists(ctx, setID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check submission: %w", err)
	}
	if done {
		return nil, session.ErrAlreadySubmitted
	}

	startKey := config.CacheKey.AttemptStartKey(setID.String(), studentID)

	// Fast lane: an attempt already started on this or another device.
	if unix, err := s.rdb.Get(ctx, startKey).Int64(); err == nil {
		return &model.Attempt{
			ExamID:    examID,
			SetID:     setID,
			StudentID: studentID,
			StartedAt: time.Unix(unix, 0),
			Status:    model.AttemptStatusInProgress,
		}, nil
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Redis error reading attempt start, falling back to database")
	}

	existing, err := s.attempts.GetBySetAndStudent(ctx, setID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptStatusCompleted {
			return nil, session.ErrAlreadySubmitted
		}
		s.cacheStart(ctx, startKey, existing.StartedAt)
		return existing, nil
	}

	attempt := &model.Attempt{ExamID: examID, SetID: setID, StudentID: studentID}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another connection.
			existing, fetchErr := s.attempts.GetBySetAndStudent(ctx, setID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			s.cacheStart(ctx, startKey, existing.StartedAt)
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.cacheStart(ctx, startKey, attempt.StartedAt)
	if s.monitor != nil {
		s.monitor.Publish(ctx, examID, MonitorEvent{
			Type:      MonitorJoined,
			StudentID: studentID,
			SetID:     setID,
			At:        attempt.StartedAt,
		})
	}

	s.log.Info().
		Int("student_id", studentID).
		Str("set_id", setID.String()).
		Time("started_at", attempt.StartedAt).
		Msg("Attempt started")
	return attempt, nil
}

// StartTime returns the recorded start of an attempt, healing the cache from
// PostgreSQL on a miss.
func (s *AttemptService) StartTime(ctx context.Context, setID uuid.UUID, studentID int) (time.Time, error) {
	startKey := config.CacheKey.AttemptStartKey(setID.String(), studentID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if err == nil {
		unix, convErr := strconv.ParseInt(val, 10, 64)
		if convErr == nil {
			return time.Unix(unix, 0), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("redis error getting start time: %w", err)
	}

	attempt, err := s.attempts.GetBySetAndStudent(ctx, setID, studentID)
	if err != nil {
		return time.Time{}, fmt.Errorf("attempt not found in cache or db: %w", err)
	}
	s.cacheStart(ctx, startKey, attempt.StartedAt)
	return attempt.StartedAt, nil
}

func (s *AttemptService) cacheStart(ctx context.Context, key string, startedAt time.Time) {
	if err := s.rdb.Set(ctx, key, startedAt.Unix(), attemptStartTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache attempt start")
	}
}
