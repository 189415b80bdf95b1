package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AttemptRepository handles attempt start markers.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetBySetAndStudent retrieves the attempt of a student at a set.
func (r *AttemptRepository) GetBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, set_id, student_id, started_at, finished_at, status
		 FROM exam_attempts
		 WHERE set_id = $1 AND student_id = $2`, setID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.SetID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt. A concurrent insert for the same (student, set)
// yields pgx.ErrNoRows.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, set_id, student_id, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, set_id) DO NOTHING
		 RETURNING id, started_at, status`,
		a.ExamID, a.SetID, a.StudentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt, &a.Status)
}
