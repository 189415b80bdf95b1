package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// FallbackSetMinutes is used when neither the set nor config declares a duration.
const FallbackSetMinutes = 60

// UnlockService decides which sets of a chain are open on the set-selection screen.
type UnlockService struct {
	sets           SetStore
	submissions    SubmissionStore
	defaultMinutes int
	log            zerolog.Logger
}

// NewUnlockService creates a new UnlockService.
func NewUnlockService(sets SetStore, submissions SubmissionStore, defaultMinutes int, log zerolog.Logger) *UnlockService {
	if defaultMinutes <= 0 {
		defaultMinutes = FallbackSetMinutes
	}
	return &UnlockService{
		sets:           sets,
		submissions:    submissions,
		defaultMinutes: defaultMinutes,
		log:            log.With().Str("component", "unlock_service").Logger(),
	}
}

// ListSets returns every set of the exam with its unlock decision at now.
func (s *UnlockService) ListSets(ctx context.Context, studentID int, examID uuid.UUID, now time.Time) ([]model.SetAvailability, error) {
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	records, err := s.submissions.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	bySetNumber := make(map[int]*model.SubmissionRecord, len(records))
	for i := range records {
		bySetNumber[records[i].SetNumber] = &records[i]
	}
	limits := make(map[int]int, len(sets))
	for _, set := range sets {
		limits[set.SetNumber] = set.TimeLimitMinutes
	}

	out := make([]model.SetAvailability, 0, len(sets))
	for _, set := range sets {
		n := set.SetNumber
		decision := EvaluateUnlock(n, bySetNumber[n-1], s.durationOf(limits[n-1]), now)
		_, decision.Completed = bySetNumber[n]
		out = append(out, model.SetAvailability{
			SetNumber: n,
			SetID:     set.ID,
			Title:     set.Title,
			Decision:  decision,
		})
	}
	return out, nil
}

// Evaluate returns the decision for one set number of the exam.
func (s *UnlockService) Evaluate(ctx context.Context, studentID int, examID uuid.UUID, setNumber int, now time.Time) (model.UnlockDecision, error) {
	sets, err := s.ListSets(ctx, studentID, examID, now)
	if err != nil {
		return model.UnlockDecision{}, err
	}
	for _, a := range sets {
		if a.SetNumber == setNumber {
			return a.Decision, nil
		}
	}
	return model.UnlockDecision{}, fmt.Errorf("set %d of exam %s: %w", setNumber, examID, ErrNotFound)
}

func (s *UnlockService) durationOf(limitMinutes int) int {
	if limitMinutes > 0 {
		return limitMinutes
	}
	return s.defaultMinutes
}

// EvaluateUnlock applies the pacing rule to set setNumber given the record of
// the previous set. The full duration of the previous set must elapse from its
// reconstructed start before the next set opens.
func EvaluateUnlock(setNumber int, prev *model.SubmissionRecord, prevDurationMinutes int, now time.Time) model.UnlockDecision {
	if setNumber <= 1 {
		return model.UnlockDecision{}
	}
	if prev == nil {
		return model.UnlockDecision{
			Locked:  true,
			Message: fmt.Sprintf("Complete Set %d first", setNumber-1),
		}
	}
	if prevDurationMinutes <= 0 {
		prevDurationMinutes = FallbackSetMinutes
	}

	minutesTaken := prev.TimeTakenMinutes
	if prev.TimeTaken != "" {
		minutesTaken = ParseMinutes(prev.TimeTaken)
	}

	start := prev.CreatedAt.Add(-time.Duration(minutesTaken) * time.Minute)
	unlockAt := start.Add(time.Duration(prevDurationMinutes) * time.Minute)

	if now.Before(unlockAt) {
		wait := int(math.Ceil(float64(unlockAt.Sub(now)) / float64(time.Minute)))
		return model.UnlockDecision{
			Locked:   true,
			Message:  fmt.Sprintf("Unlocks in %d min", wait),
			UnlockAt: &unlockAt,
		}
	}
	return model.UnlockDecision{}
}

// ParseMinutes reads the leading integer of a stored time-taken value such as
// "10 min". Anything non-numeric yields 0.
func ParseMinutes(raw string) int {
	raw = strings.TrimSpace(raw)
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > math.MaxInt32 {
			return 0
		}
	}
	return n
}
