// Package seed populates a database with demo exams and students.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ChainSpec describes the exam to create.
type ChainSpec struct {
	Title           string
	Kind            model.ExamKind
	Sets            int
	QuestionsPerSet int
	SetMinutes      int
}

// Result lists what was created.
type Result struct {
	ExamID     uuid.UUID
	SetIDs     []uuid.UUID
	StudentIDs []int
}

// Chain creates an exam with numbered sets and generated questions in one
// transaction. Question j of every set has option j%4 as its correct answer.
func Chain(ctx context.Context, pool *pgxpool.Pool, spec ChainSpec) (*Result, error) {
	if spec.Sets < 1 || spec.QuestionsPerSet < 1 || spec.SetMinutes < 1 {
		return nil, fmt.Errorf("invalid spec: %+v", spec)
	}
	if spec.Kind == "" {
		spec.Kind = model.ExamKindChain
	}

	res := &Result{}
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO exams (title, kind) VALUES ($1, $2) RETURNING id`,
			spec.Title, spec.Kind,
		).Scan(&res.ExamID); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		for n := 1; n <= spec.Sets; n++ {
			var setID uuid.UUID
			if err := tx.QueryRow(ctx,
				`INSERT INTO question_sets (exam_id, title, set_number, time_limit_minutes)
				 VALUES ($1, $2, $3, $4) RETURNING id`,
				res.ExamID, fmt.Sprintf("%s - Set %d", spec.Title, n), n, spec.SetMinutes,
			).Scan(&setID); err != nil {
				return fmt.Errorf("insert set %d: %w", n, err)
			}
			res.SetIDs = append(res.SetIDs, setID)

			batch := &pgx.Batch{}
			for j := 0; j < spec.QuestionsPerSet; j++ {
				options, _ := json.Marshal([]string{"A", "B", "C", "D"})
				batch.Queue(
					`INSERT INTO questions (set_id, question_text, options, correct_option_index, order_num)
					 VALUES ($1, $2, $3, $4, $5)`,
					setID, fmt.Sprintf("Set %d, question %d", n, j+1), options, j%4, j+1,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert questions of set %d: %w", n, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Students upserts one student per name and grants each access to examID.
func Students(ctx context.Context, pool *pgxpool.Pool, examID uuid.UUID, names []string) ([]int, error) {
	students := repository.NewStudentRepository(pool)
	entitlements := repository.NewEntitlementRepository(pool)

	ids := make([]int, 0, len(names))
	for i, name := range names {
		s := &model.Student{Name: name, Email: fmt.Sprintf("student%d@exstem.test", i+1)}
		if err := students.Upsert(ctx, s); err != nil {
			return ids, fmt.Errorf("upsert %s: %w", s.Email, err)
		}
		if err := entitlements.Grant(ctx, s.ID, examID); err != nil {
			return ids, fmt.Errorf("grant %s: %w", s.Email, err)
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}
