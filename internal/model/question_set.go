package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionSet is one numbered block of questions. Immutable once fetched for a session.
type QuestionSet struct {
	ID               uuid.UUID `json:"id"`
	ParentExamID     uuid.UUID `json:"parent_exam_id"`
	Title            string    `json:"title"`
	SetNumber        int       `json:"set_number"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	TotalQuestions   int       `json:"total_questions"`
	CreatedAt        time.Time `json:"created_at"`
}

// SetPayload is the Redis-cached, student-facing view of a set (no correct answers).
type SetPayload struct {
	Set       QuestionSet          `json:"set"`
	Questions []QuestionForStudent `json:"questions"`
}

// LoadedSet is the full content of a set as needed to run a session.
type LoadedSet struct {
	Set       QuestionSet
	Questions []Question
}

// AnswerKey returns the correct option index of every question, in order.
func (l *LoadedSet) AnswerKey() []int {
	key := make([]int, len(l.Questions))
	for i, q := range l.Questions {
		key[i] = q.CorrectOptionIndex
	}
	return key
}
