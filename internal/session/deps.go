package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// EntitlementChecker answers whether a student may take an exam.
type EntitlementChecker interface {
	HasAccess(ctx context.Context, studentID int, examID uuid.UUID) (bool, error)
}

// SetLoader fetches the set metadata and its ordered questions.
type SetLoader interface {
	Load(ctx context.Context, setID uuid.UUID) (*model.LoadedSet, error)
}

// AttemptStarter records, or returns the existing, start of an attempt.
type AttemptStarter interface {
	Begin(ctx context.Context, studentID int, examID, setID uuid.UUID) (*model.Attempt, error)
}

// ResultSubmitter persists the outcome and decides the next hop.
type ResultSubmitter interface {
	SubmitOutcome(ctx context.Context, sc model.SessionContext, rec *model.SubmissionRecord) model.Navigation
}

// Translator translates texts, preserving order.
type Translator interface {
	Translate(ctx context.Context, texts []string) ([]string, error)
}

// AnswerStore mirrors answers outside the session so a reconnect can resume.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, sc model.SessionContext, questionID uuid.UUID, option int) error
	Restore(ctx context.Context, sc model.SessionContext, questions []model.Question) ([]*int, error)
}

// ViolationRecorder keeps the audit trail of violations.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, rec model.ViolationRecord) error
}

// EventType names an event pushed to the client.
type EventType string

const (
	EventSnapshot  EventType = "snapshot"
	EventTick      EventType = "tick"
	EventViolation EventType = "violation"
	EventBlocked   EventType = "blocked"
	EventNotice    EventType = "notice"
	EventNavigate  EventType = "navigate"
)

// Event is a server → client message emitted by a controller.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// BlockedSignal tells the client to suppress the default action of a signal.
type BlockedSignal struct {
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`
}

// Notice is a non-blocking message for the student.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
