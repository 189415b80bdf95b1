package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const (
	NoticeSetCompleted = "Set Completed"
	WarningNotSaved    = "Your result could not be saved. Please contact your proctor."
)

// ResultService persists finalized outcomes and decides the next navigation hop.
type ResultService struct {
	submissions SubmissionStore
	tokens      *ChainTokenService
	monitor     *MonitorService
	log         zerolog.Logger
}

// NewResultService creates a new ResultService. monitor may be nil.
func NewResultService(submissions SubmissionStore, tokens *ChainTokenService, monitor *MonitorService, log zerolog.Logger) *ResultService {
	return &ResultService{
		submissions: submissions,
		tokens:      tokens,
		monitor:     monitor,
		log:         log.With().Str("component", "result_service").Logger(),
	}
}

// SubmitOutcome persists rec once and returns where the student goes next.
// A failed write is reported as a warning on the navigation; it is never retried.
func (s *ResultService) SubmitOutcome(ctx context.Context, sc model.SessionContext, rec *model.SubmissionRecord) model.Navigation {
	log := s.log.With().
		Int("student_id", sc.StudentID).
		Str("exam_id", sc.ExamID.String()).
		Str("set_id", sc.SetID.String()).
		Logger()

	nav := s.route(sc, rec)

	if err := s.persist(ctx, sc, rec); err != nil {
		if errors.Is(err, session.ErrAlreadySubmitted) {
			log.Info().Msg("Outcome already recorded, keeping the first record")
		} else {
			log.Error().Err(err).Msg("Failed to persist outcome")
			nav.Warning = WarningNotSaved
		}
	} else {
		log.Info().
			Int("score", rec.Score).
			Int("total", rec.TotalQuestions).
			Str("reason", string(rec.Reason)).
			Msg("Outcome persisted")
	}

	if s.monitor != nil {
		score := rec.Score
		s.monitor.Publish(ctx, sc.ExamID, MonitorEvent{
			Type:      MonitorFinalized,
			StudentID: sc.StudentID,
			SetID:     sc.SetID,
			SetNumber: sc.SetNumber,
			Reason:    string(rec.Reason),
			Score:     &score,
			At:        rec.CreatedAt,
		})
	}
	return nav
}

func (s *ResultService) persist(ctx context.Context, sc model.SessionContext, rec *model.SubmissionRecord) error {
	var err error
	if sc.IsChain {
		err = s.submissions.SubmitChainSetResult(ctx, sc.ExamID, sc.SetNumber, rec)
	} else {
		err = s.submissions.SubmitResult(ctx, sc.SetID, rec)
	}
	if errors.Is(err, repository.ErrDuplicateSubmission) {
		return session.ErrAlreadySubmitted
	}
	return err
}

func (s *ResultService) route(sc model.SessionContext, rec *model.SubmissionRecord) model.Navigation {
	if !sc.IsChain {
		return model.Navigation{
			Kind: model.NavigateResult,
			Path: fmt.Sprintf("/result/%s/%s", sc.ExamID, sc.SetID),
			State: &model.NavigationState{
				Score:     rec.Score,
				TimeTaken: rec.TimeTaken,
				Total:     rec.TotalQuestions,
			},
		}
	}

	chainResult := model.Navigation{
		Kind: model.NavigateChainResult,
		Path: fmt.Sprintf("/exams/%s/result", sc.ExamID),
	}
	if sc.SetNumber >= sc.ChainLength {
		return chainResult
	}

	nextID, ok := sc.SetNumberToSetID[sc.SetNumber+1]
	if !ok {
		s.log.Error().Int("set_number", sc.SetNumber+1).Msg("Next set missing from chain map")
		return chainResult
	}

	nav := model.Navigation{
		Kind:   model.NavigateNextSet,
		Path:   fmt.Sprintf("/exams/%s/sets/%s/instructions", sc.ExamID, nextID),
		Notice: NoticeSetCompleted,
	}
	if s.tokens != nil {
		token, err := s.tokens.Issue(sc.StudentID, model.ChainPosition{
			ExamID:      sc.ExamID,
			SetID:       nextID,
			SetNumber:   sc.SetNumber + 1,
			ChainLength: sc.ChainLength,
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to issue chain token")
		}
		nav.ChainToken = token
	}
	return nav
}

// SetResult returns the record of a student at a set.
func (s *ResultService) SetResult(ctx context.Context, studentID int, setID uuid.UUID) (*model.SubmissionRecord, error) {
	rec, err := s.submissions.GetBySetAndStudent(ctx, setID, studentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return rec, nil
}

// ChainResult aggregates every submitted set of the student's chain.
func (s *ResultService) ChainResult(ctx context.Context, studentID int, examID uuid.UUID, chainLength int) (*model.ChainResult, error) {
	records, err := s.submissions.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	res := &model.ChainResult{
		ExamID:      examID,
		ChainLength: chainLength,
		Completed:   len(records),
		Sets:        records,
	}
	for _, r := range records {
		res.Score += r.Score
		res.TotalQuestions += r.TotalQuestions
		res.TimeTakenSeconds += r.TimeTakenSeconds
	}
	res.Accuracy = session.Accuracy(res.Score, res.TotalQuestions)
	return res, nil
}
