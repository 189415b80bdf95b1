package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates persisted attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// Attempt is the persisted start marker of a student's attempt at a set.
// The start time is the anchor of the session deadline and survives reloads.
type Attempt struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	SetID      uuid.UUID     `json:"set_id"`
	StudentID  int           `json:"student_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     AttemptStatus `json:"status"`
}

// StartSessionRequest is the optional payload of the instructions → session hop.
type StartSessionRequest struct {
	ChainToken string `json:"chain_token" binding:"omitempty,max=2048"`
}

// InstructionsResponse is returned by the instructions endpoint.
type InstructionsResponse struct {
	Set        QuestionSet    `json:"set"`
	Position   *ChainPosition `json:"position,omitempty"`
	Decision   UnlockDecision `json:"decision"`
	ChainToken string         `json:"chain_token,omitempty"`
}
