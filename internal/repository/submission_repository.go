package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrDuplicateSubmission is returned when a record already exists for (student, exam, set).
var ErrDuplicateSubmission = errors.New("submission already exists")

const submissionColumns = `id, student_id, exam_id, set_id, set_number, score, total_questions, accuracy,
		        COALESCE(time_taken, ''), time_taken_minutes, time_taken_seconds, answers, reason, created_at`

// SubmissionRepository persists set outcomes.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// SubmitResult stores the outcome of a standalone set.
func (r *SubmissionRepository) SubmitResult(ctx context.Context, setID uuid.UUID, rec *model.SubmissionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertSubmission(ctx, tx, rec.ExamID, setID, rec.SetNumber, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SubmitChainSetResult stores the outcome of a chained set, resolving the set
// from (exam, set number) so a record can never land on another exam's set.
func (r *SubmissionRepository) SubmitChainSetResult(ctx context.Context, examID uuid.UUID, setNumber int, rec *model.SubmissionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var setID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM question_sets WHERE exam_id = $1 AND set_number = $2`, examID, setNumber,
	).Scan(&setID)
	if err != nil {
		return fmt.Errorf("resolve set %d of exam %s: %w", setNumber, examID, err)
	}

	if err := insertSubmission(ctx, tx, examID, setID, setNumber, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertSubmission writes the record and closes the matching attempt.
func insertSubmission(ctx context.Context, tx pgx.Tx, examID, setID uuid.UUID, setNumber int, rec *model.SubmissionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO submissions (id, student_id, exam_id, set_id, set_number, score, total_questions, accuracy,
		                          time_taken, time_taken_minutes, time_taken_seconds, answers, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (student_id, exam_id, set_id) DO NOTHING
		 RETURNING id`,
		rec.ID, rec.StudentID, examID, setID, setNumber, rec.Score, rec.TotalQuestions, rec.Accuracy,
		rec.TimeTaken, rec.TimeTakenMinutes, rec.TimeTakenSeconds, answers, rec.Reason, rec.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateSubmission
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE exam_attempts SET status = $1, finished_at = $2
		 WHERE set_id = $3 AND student_id = $4`,
		model.AttemptStatusCompleted, rec.CreatedAt, setID, rec.StudentID)
	return err
}

// Exists reports whether a record exists for the student at a set.
func (r *SubmissionRepository) Exists(ctx context.Context, setID uuid.UUID, studentID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE set_id = $1 AND student_id = $2)`,
		setID, studentID,
	).Scan(&ok)
	return ok, err
}

// GetBySetAndStudent retrieves the record of a student at a set.
func (r *SubmissionRepository) GetBySetAndStudent(ctx context.Context, setID uuid.UUID, studentID int) (*model.SubmissionRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions WHERE set_id = $1 AND student_id = $2`, setID, studentID)
	return scanSubmission(row)
}

// ListByExamAndStudent returns a student's records of an exam ordered by set number.
func (r *SubmissionRepository) ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.SubmissionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY set_number ASC`, examID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SubmissionRecord
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanSubmission(row pgx.Row) (*model.SubmissionRecord, error) {
	rec := &model.SubmissionRecord{}
	var answers []byte
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ExamID, &rec.SetID, &rec.SetNumber, &rec.Score,
		&rec.TotalQuestions, &rec.Accuracy, &rec.TimeTaken, &rec.TimeTakenMinutes, &rec.TimeTakenSeconds,
		&answers, &rec.Reason, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &rec.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return rec, nil
}
