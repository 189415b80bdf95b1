package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRow is one autosaved selection.
type AnswerRow struct {
	StudentID      int
	SetID          uuid.UUID
	QuestionID     uuid.UUID
	SelectedOption int
}

// AnswerRepository persists autosaved answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch writes the latest selection of every row in one round trip.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, rows []AnswerRow) error {
	batch := &pgx.Batch{}
	for _, a := range rows {
		batch.Queue(
			`INSERT INTO attempt_answers (student_id, set_id, question_id, selected_option)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (student_id, set_id, question_id) DO UPDATE
			 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
			a.StudentID, a.SetID, a.QuestionID, a.SelectedOption,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// Upsert writes a single selection.
func (r *AnswerRepository) Upsert(ctx context.Context, a AnswerRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (student_id, set_id, question_id, selected_option)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, set_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
		a.StudentID, a.SetID, a.QuestionID, a.SelectedOption,
	)
	return err
}

// ListBySetAndStudent returns question → selected option.
func (r *AnswerRepository) ListBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option FROM attempt_answers WHERE set_id = $1 AND student_id = $2`,
		setID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int)
	for rows.Next() {
		var qid uuid.UUID
		var opt int
		if err := rows.Scan(&qid, &opt); err != nil {
			return nil, err
		}
		out[qid] = opt
	}
	return out, rows.Err()
}
