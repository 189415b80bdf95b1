package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AttemptRow is one attempt as shown on the proctor monitor.
type AttemptRow struct {
	StudentID  int                 `json:"student_id"`
	Name       string              `json:"name"`
	SetID      uuid.UUID           `json:"set_id"`
	SetNumber  int                 `json:"set_number"`
	Status     model.AttemptStatus `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at"`
	Score      *int                `json:"score"`
	Reason     *string             `json:"reason"`
}

// MonitorRepository provides data access for the live proctor monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListAttempts returns every attempt of an exam with its outcome, if any.
func (r *MonitorRepository) ListAttempts(ctx context.Context, examID uuid.UUID) ([]AttemptRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.student_id, s.name, a.set_id, qs.set_number, a.status, a.started_at, a.finished_at,
		        sub.score, sub.reason
		 FROM exam_attempts a
		 JOIN students s ON s.id = a.student_id
		 JOIN question_sets qs ON qs.id = a.set_id
		 LEFT JOIN submissions sub ON sub.set_id = a.set_id AND sub.student_id = a.student_id
		 WHERE a.exam_id = $1
		 ORDER BY qs.set_number ASC, s.name ASC`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var a AttemptRow
		if err := rows.Scan(&a.StudentID, &a.Name, &a.SetID, &a.SetNumber, &a.Status, &a.StartedAt,
			&a.FinishedAt, &a.Score, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAnsweredCounts returns the number of answered questions per student in the exam.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	return r.countByStudent(ctx,
		`SELECT aa.student_id, COUNT(*)
		 FROM attempt_answers aa
		 JOIN question_sets qs ON qs.id = aa.set_id
		 WHERE qs.exam_id = $1
		 GROUP BY aa.student_id`, examID)
}

// GetViolationCounts returns the number of recorded violations per student in the exam.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	return r.countByStudent(ctx,
		`SELECT student_id, COUNT(*)
		 FROM violations
		 WHERE exam_id = $1
		 GROUP BY student_id`, examID)
}

func (r *MonitorRepository) countByStudent(ctx context.Context, query string, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx, query, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}
