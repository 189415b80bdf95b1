package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationRepository stores the violation audit trail.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// CopyInsert bulk-inserts records with the COPY protocol.
func (r *ViolationRepository) CopyInsert(ctx context.Context, records []model.ViolationRecord) error {
	rows := make([][]any, 0, len(records))
	for _, v := range records {
		rows = append(rows, []any{
			v.StudentID, v.ExamID, v.SetID, v.Violation.Capability,
			string(v.Violation.Reason), v.Violation.Detail, v.Finalizing, v.Violation.At,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"violations"},
		[]string{"student_id", "exam_id", "set_id", "capability", "reason", "detail", "finalizing", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert stores a single record.
func (r *ViolationRepository) Insert(ctx context.Context, v model.ViolationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO violations (student_id, exam_id, set_id, capability, reason, detail, finalizing, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.StudentID, v.ExamID, v.SetID, v.Violation.Capability,
		string(v.Violation.Reason), v.Violation.Detail, v.Finalizing, v.Violation.At,
	)
	return err
}
