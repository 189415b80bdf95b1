package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionRecord is the single persisted outcome of one attempt.
type SubmissionRecord struct {
	ID               uuid.UUID      `json:"id"`
	StudentID        int            `json:"student_id"`
	ExamID           uuid.UUID      `json:"exam_id"`
	SetID            uuid.UUID      `json:"set_id"`
	SetNumber        int            `json:"set_number"`
	Score            int            `json:"score"`
	TotalQuestions   int            `json:"total_questions"`
	Accuracy         int            `json:"accuracy"`
	TimeTaken        string         `json:"time_taken"`
	TimeTakenMinutes int            `json:"time_taken_minutes"`
	TimeTakenSeconds int            `json:"time_taken_seconds"`
	Answers          []*int         `json:"answers"`
	Reason           FinalizeReason `json:"reason"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ChainResult aggregates every submitted set of a chain.
type ChainResult struct {
	ExamID           uuid.UUID          `json:"exam_id"`
	ChainLength      int                `json:"chain_length"`
	Completed        int                `json:"completed"`
	Score            int                `json:"score"`
	TotalQuestions   int                `json:"total_questions"`
	Accuracy         int                `json:"accuracy"`
	TimeTakenSeconds int                `json:"time_taken_seconds"`
	Sets             []SubmissionRecord `json:"sets"`
}
