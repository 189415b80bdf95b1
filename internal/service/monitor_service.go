package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// MonitorEventType names an event on an exam's proctor channel.
type MonitorEventType string

const (
	MonitorJoined    MonitorEventType = "joined"
	MonitorViolation MonitorEventType = "violation"
	MonitorFinalized MonitorEventType = "finalized"
)

// MonitorEvent is published on the exam's Redis channel and forwarded to SSE clients.
type MonitorEvent struct {
	Type      MonitorEventType `json:"type"`
	StudentID int              `json:"student_id"`
	SetID     uuid.UUID        `json:"set_id"`
	SetNumber int              `json:"set_number,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Score     *int             `json:"score,omitempty"`
	At        time.Time        `json:"at"`
}

// MonitorService orchestrates live exam monitoring.
type MonitorService struct {
	store MonitorStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store MonitorStore, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "monitor_service").Logger(),
	}
}

// Publish sends an event to the exam's monitor channel. Failures are logged only.
func (s *MonitorService) Publish(ctx context.Context, examID uuid.UUID, ev MonitorEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to publish monitor event")
	}
}

// Subscribe opens the exam's monitor channel.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}

// ProgressSnapshot holds attempts and per-student counters of an exam.
type ProgressSnapshot struct {
	Attempts        []repository.AttemptRow `json:"attempts"`
	AnsweredCounts  map[int]int64           `json:"answered_counts"`
	ViolationCounts map[int]int64           `json:"violation_counts"`
	TotalViolations int64                   `json:"total_violations"`
	InProgress      int                     `json:"in_progress"`
	Completed       int                     `json:"completed"`
}

// GetProgress fetches attempts and counters concurrently. Attempts are
// critical; counters are best-effort.
func (s *MonitorService) GetProgress(ctx context.Context, examID uuid.UUID) (*ProgressSnapshot, error) {
	snapshot := &ProgressSnapshot{
		AnsweredCounts:  make(map[int]int64),
		ViolationCounts: make(map[int]int64),
	}

	var (
		attempts        []repository.AttemptRow
		answeredCounts  map[int]int64
		violationCounts map[int]int64
		attemptsErr     error
		answeredErr     error
		violationErr    error
		wg              sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		attempts, attemptsErr = s.store.ListAttempts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.store.GetAnsweredCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		violationCounts, violationErr = s.store.GetViolationCounts(ctx, examID)
	}()
	wg.Wait()

	if attemptsErr != nil {
		return nil, fmt.Errorf("list attempts: %w", attemptsErr)
	}
	snapshot.Attempts = attempts
	for _, a := range attempts {
		if a.Status == model.AttemptStatusCompleted {
			snapshot.Completed++
		} else {
			snapshot.InProgress++
		}
	}

	if answeredErr == nil && answeredCounts != nil {
		snapshot.AnsweredCounts = answeredCounts
	}
	if violationErr == nil && violationCounts != nil {
		snapshot.ViolationCounts = violationCounts
		for _, count := range violationCounts {
			snapshot.TotalViolations += count
		}
	}
	return snapshot, nil
}
