package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationService queues violations for the audit trail and notifies proctors.
type ViolationService struct {
	rdb     *redis.Client
	monitor *MonitorService
	log     zerolog.Logger
}

// NewViolationService creates a new ViolationService. monitor may be nil.
func NewViolationService(rdb *redis.Client, monitor *MonitorService, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		rdb:     rdb,
		monitor: monitor,
		log:     log.With().Str("component", "violation_service").Logger(),
	}
}

// RecordViolation enqueues the record for the violation worker.
func (s *ViolationService) RecordViolation(ctx context.Context, rec model.ViolationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}

	if s.monitor != nil {
		s.monitor.Publish(ctx, rec.ExamID, MonitorEvent{
			Type:      MonitorViolation,
			StudentID: rec.StudentID,
			SetID:     rec.SetID,
			Reason:    string(rec.Violation.Reason),
			At:        rec.Violation.At,
		})
	}

	s.log.Warn().
		Int("student_id", rec.StudentID).
		Str("set_id", rec.SetID.String()).
		Str("capability", rec.Violation.Capability).
		Str("reason", string(rec.Violation.Reason)).
		Bool("finalizing", rec.Finalizing).
		Msg("Violation recorded")
	return nil
}
