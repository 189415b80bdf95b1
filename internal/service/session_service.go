package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
	"golang.org/x/text/language"
)

// SessionServiceDeps groups the collaborators of SessionService.
// Translation may be nil.
type SessionServiceDeps struct {
	Exams       ExamStore
	Loader      *LoaderService
	Continuity  *ContinuityService
	Unlock      *UnlockService
	Access      *AccessService
	Attempts    *AttemptService
	Results     *ResultService
	Autosave    *AutosaveService
	Violations  *ViolationService
	Translation *TranslationService
}

// OpenRequest describes a student entering a set.
type OpenRequest struct {
	StudentID  int
	ExamID     uuid.UUID
	SetID      uuid.UUID
	ChainToken string
	Language   language.Tag
	Notify     func(session.Event)
}

type liveKey struct {
	studentID int
	setID     uuid.UUID
}

// SessionService opens controllers and keeps one live controller per
// student and set. A second connection to the same set replaces the first.
type SessionService struct {
	deps SessionServiceDeps
	cfg  session.Config
	log  zerolog.Logger

	mu   sync.Mutex
	live map[liveKey]*session.Controller
}

// NewSessionService creates a new SessionService.
func NewSessionService(deps SessionServiceDeps, cfg session.Config, log zerolog.Logger) *SessionService {
	return &SessionService{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "session_service").Logger(),
		live: make(map[liveKey]*session.Controller),
	}
}

// GetExam returns the exam or ErrNotFound.
func (s *SessionService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.deps.Exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// Open validates the entry, starts a controller and registers it.
func (s *SessionService) Open(ctx context.Context, req OpenRequest) (*session.Controller, error) {
	exam, err := s.GetExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	var pos *model.ChainPosition
	if exam.IsChain() {
		pos, err = s.deps.Continuity.ResolveWithToken(ctx, req.StudentID, req.ExamID, req.SetID, req.ChainToken)
		if err != nil {
			return nil, err
		}
		decision, err := s.deps.Unlock.Evaluate(ctx, req.StudentID, req.ExamID, pos.SetNumber, s.now())
		if err != nil {
			return nil, err
		}
		if decision.Locked {
			return nil, fmt.Errorf("%w: %s", ErrSetLocked, decision.Message)
		}
	} else {
		set, err := s.deps.Loader.GetSet(ctx, req.SetID)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrLoadFailure, err)
		}
		if set.ParentExamID != req.ExamID {
			return nil, ErrNotFound
		}
	}

	deps := session.Deps{
		Entitlements: s.deps.Access,
		Loader:       s.deps.Loader,
		Attempts:     s.deps.Attempts,
		Submitter:    s.deps.Results,
		Answers:      s.deps.Autosave,
		Violations:   s.deps.Violations,
		Notify:       req.Notify,
		Log:          s.log,
	}
	if s.deps.Translation != nil && s.deps.Translation.Enabled() {
		deps.Translator = s.deps.Translation.For(req.Language)
	}

	c := session.New(s.cfg, deps, session.Params{
		StudentID: req.StudentID,
		ExamID:    req.ExamID,
		SetID:     req.SetID,
		Position:  pos,
	})

	key := liveKey{studentID: req.StudentID, setID: req.SetID}
	s.mu.Lock()
	prev := s.live[key]
	s.live[key] = c
	s.mu.Unlock()
	if prev != nil {
		s.log.Info().
			Int("student_id", req.StudentID).
			Str("set_id", req.SetID.String()).
			Msg("Replacing live session from another connection")
		prev.Close()
	}

	if err := c.Start(ctx); err != nil {
		s.Release(req.StudentID, req.SetID, c)
		return nil, err
	}
	return c, nil
}

// Release closes c and drops it from the registry if it is still the live one.
func (s *SessionService) Release(studentID int, setID uuid.UUID, c *session.Controller) {
	key := liveKey{studentID: studentID, setID: setID}
	s.mu.Lock()
	if s.live[key] == c {
		delete(s.live, key)
	}
	s.mu.Unlock()
	c.Close()
}

// Live returns the number of registered controllers.
func (s *SessionService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown closes every live controller. Pending answers stay queued in Redis.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[liveKey]*session.Controller)
	s.mu.Unlock()

	for _, c := range live {
		c.Close()
	}
	if len(live) > 0 {
		s.log.Info().Int("count", len(live)).Msg("Closed live sessions")
	}
}

func (s *SessionService) now() time.Time {
	if s.cfg.Now != nil {
		return s.cfg.Now()
	}
	return time.Now()
}
