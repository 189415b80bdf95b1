package model

import (
	"time"

	"github.com/google/uuid"
)

// Violation is a detected integrity-policy breach.
type Violation struct {
	Capability string         `json:"capability"`
	Reason     FinalizeReason `json:"reason"`
	Detail     string         `json:"detail,omitempty"`
	At         time.Time      `json:"at"`
}

// ViolationRecord is the audit row for a violation observed during an attempt.
type ViolationRecord struct {
	StudentID  int       `json:"student_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	SetID      uuid.UUID `json:"set_id"`
	Violation  Violation `json:"violation"`
	Finalizing bool      `json:"finalizing"`
}
