package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// The stores below are satisfied by the pgx repositories in internal/repository.

type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type SetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionSet, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSet, error)
	ChainDefinition(ctx context.Context, examID uuid.UUID) (*model.ChainDefinition, error)
}

type QuestionStore interface {
	ListBySet(ctx context.Context, setID uuid.UUID) ([]model.Question, error)
}

type EntitlementStore interface {
	HasAccess(ctx context.Context, studentID int, examID uuid.UUID) (bool, error)
}

type AttemptStore interface {
	GetBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
}

type SubmissionStore interface {
	SubmitResult(ctx context.Context, setID uuid.UUID, rec *model.SubmissionRecord) error
	SubmitChainSetResult(ctx context.Context, examID uuid.UUID, setNumber int, rec *model.SubmissionRecord) error
	Exists(ctx context.Context, setID uuid.UUID, studentID int) (bool, error)
	GetBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (*model.SubmissionRecord, error)
	ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.SubmissionRecord, error)
}

type AnswerStore interface {
	ListBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (map[uuid.UUID]int, error)
}

type MonitorStore interface {
	ListAttempts(ctx context.Context, examID uuid.UUID) ([]repository.AttemptRow, error)
	GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
	GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
}
