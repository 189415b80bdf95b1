package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const setColumns = `s.id, s.exam_id, s.title, s.set_number, s.time_limit_minutes,
		        (SELECT COUNT(*) FROM questions q WHERE q.set_id = s.id), s.created_at`

// QuestionSetRepository handles question set data access.
type QuestionSetRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionSetRepository creates a new QuestionSetRepository.
func NewQuestionSetRepository(pool *pgxpool.Pool) *QuestionSetRepository {
	return &QuestionSetRepository{pool: pool}
}

// GetByID retrieves a set with its question count.
func (r *QuestionSetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionSet, error) {
	s := &model.QuestionSet{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+setColumns+`
		 FROM question_sets s WHERE s.id = $1`, id,
	).Scan(&s.ID, &s.ParentExamID, &s.Title, &s.SetNumber, &s.TimeLimitMinutes, &s.TotalQuestions, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByExam returns the sets of an exam ordered by set number.
func (r *QuestionSetRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+setColumns+`
		 FROM question_sets s
		 WHERE s.exam_id = $1
		 ORDER BY s.set_number ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []model.QuestionSet
	for rows.Next() {
		var s model.QuestionSet
		if err := rows.Scan(&s.ID, &s.ParentExamID, &s.Title, &s.SetNumber, &s.TimeLimitMinutes, &s.TotalQuestions, &s.CreatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// ChainDefinition returns the set-number → set mapping of an exam.
func (r *QuestionSetRepository) ChainDefinition(ctx context.Context, examID uuid.UUID) (*model.ChainDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT set_number, id FROM question_sets WHERE exam_id = $1 ORDER BY set_number ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	def := &model.ChainDefinition{ExamID: examID}
	for rows.Next() {
		var cs model.ChainSet
		if err := rows.Scan(&cs.SetNumber, &cs.SetID); err != nil {
			return nil, err
		}
		def.Sets = append(def.Sets, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	def.ChainLength = len(def.Sets)
	return def, nil
}
