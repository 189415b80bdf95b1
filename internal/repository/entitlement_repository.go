package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntitlementRepository answers whether a student has purchased an exam.
type EntitlementRepository struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository creates a new EntitlementRepository.
func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

// HasAccess reports whether an unexpired entitlement exists.
func (r *EntitlementRepository) HasAccess(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM exam_entitlements
		     WHERE student_id = $1 AND exam_id = $2
		       AND (expires_at IS NULL OR expires_at > NOW())
		 )`, studentID, examID,
	).Scan(&ok)
	return ok, err
}

// Grant records an entitlement without expiry. Granting twice is a no-op.
func (r *EntitlementRepository) Grant(ctx context.Context, studentID int, examID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_entitlements (student_id, exam_id) VALUES ($1, $2)
		 ON CONFLICT (student_id, exam_id) DO NOTHING`,
		studentID, examID,
	)
	return err
}
