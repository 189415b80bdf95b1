package model

import "github.com/google/uuid"

// AnswerPayload is the queue message for one autosaved selection.
type AnswerPayload struct {
	StudentID int       `json:"student_id"`
	SetID     uuid.UUID `json:"set_id"`
	QID       uuid.UUID `json:"q_id"`
	Option    int       `json:"option"`
}
