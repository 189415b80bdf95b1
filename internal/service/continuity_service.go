package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ContinuityService rebuilds a student's chain position from backend truth.
// It keeps no state between calls.
type ContinuityService struct {
	sets   SetStore
	tokens *ChainTokenService
	log    zerolog.Logger
}

// NewContinuityService creates a new ContinuityService.
func NewContinuityService(sets SetStore, tokens *ChainTokenService, log zerolog.Logger) *ContinuityService {
	return &ContinuityService{
		sets:   sets,
		tokens: tokens,
		log:    log.With().Str("component", "continuity_service").Logger(),
	}
}

// Definition returns the validated chain of examID.
func (s *ContinuityService) Definition(ctx context.Context, examID uuid.UUID) (*model.ChainDefinition, error) {
	def, err := s.sets.ChainDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get chain definition: %w", err)
	}
	if len(def.Sets) == 0 {
		return nil, ErrInvalidChain
	}
	if _, err := BuildPosition(def, def.Sets[0].SetID); err != nil {
		return nil, err
	}
	return def, nil
}

// Resolve locates setID within the chain of examID.
func (s *ContinuityService) Resolve(ctx context.Context, examID, setID uuid.UUID) (*model.ChainPosition, error) {
	def, err := s.sets.ChainDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get chain definition: %w", err)
	}
	return BuildPosition(def, setID)
}

// ResolveWithToken resolves from the backend, then cross-checks a chain token
// when one is presented. On any disagreement the backend position is returned.
func (s *ContinuityService) ResolveWithToken(ctx context.Context, studentID int, examID, setID uuid.UUID, token string) (*model.ChainPosition, error) {
	pos, err := s.Resolve(ctx, examID, setID)
	if err != nil {
		return nil, err
	}
	if token == "" || s.tokens == nil {
		return pos, nil
	}

	claims, err := s.tokens.Verify(token, studentID)
	if err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Ignoring chain token")
		return pos, nil
	}
	if err := claims.Agrees(pos); err != nil {
		s.log.Warn().
			Err(err).
			Int("student_id", studentID).
			Str("set_id", setID.String()).
			Msg("Chain token disagrees with backend, using backend")
	}
	return pos, nil
}

// BuildPosition validates the definition and reverse-locates setID.
func BuildPosition(def *model.ChainDefinition, setID uuid.UUID) (*model.ChainPosition, error) {
	if def == nil || len(def.Sets) == 0 {
		return nil, ErrInvalidChain
	}

	sets := append([]model.ChainSet(nil), def.Sets...)
	sort.Slice(sets, func(i, j int) bool { return sets[i].SetNumber < sets[j].SetNumber })

	pos := &model.ChainPosition{
		ExamID:           def.ExamID,
		SetID:            setID,
		ChainLength:      len(sets),
		SetNumberToSetID: make(map[int]uuid.UUID, len(sets)),
	}
	for i, cs := range sets {
		if cs.SetNumber != i+1 {
			return nil, fmt.Errorf("%w: position %d holds set number %d", ErrInvalidChain, i+1, cs.SetNumber)
		}
		pos.SetNumberToSetID[cs.SetNumber] = cs.SetID
		if cs.SetID == setID {
			pos.SetNumber = cs.SetNumber
		}
	}
	if def.ChainLength != 0 && def.ChainLength != len(sets) {
		return nil, fmt.Errorf("%w: declared length %d, found %d sets", ErrInvalidChain, def.ChainLength, len(sets))
	}
	if pos.SetNumber == 0 {
		return nil, ErrSetNotInChain
	}
	return pos, nil
}
