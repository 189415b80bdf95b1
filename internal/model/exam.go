package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamKind distinguishes a standalone subject set from a chained multi-set exam.
type ExamKind string

const (
	ExamKindSingle ExamKind = "SINGLE"
	ExamKindChain  ExamKind = "CHAIN"
)

// Exam is the parent of one or more question sets.
type Exam struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Kind      ExamKind  `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// IsChain reports whether sets of this exam unlock one at a time.
func (e *Exam) IsChain() bool {
	return e.Kind == ExamKindChain
}
