package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPosition(t *testing.T) {
	examID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	def := &model.ChainDefinition{
		ExamID: examID,
		Sets: []model.ChainSet{
			{SetNumber: 3, SetID: c},
			{SetNumber: 1, SetID: a},
			{SetNumber: 2, SetID: b},
		},
	}

	pos, err := BuildPosition(def, b)
	require.NoError(t, err)
	assert.Equal(t, 2, pos.SetNumber)
	assert.Equal(t, 3, pos.ChainLength)
	assert.Equal(t, map[int]uuid.UUID{1: a, 2: b, 3: c}, pos.SetNumberToSetID)

	next, ok := pos.NextSetID()
	assert.True(t, ok)
	assert.Equal(t, c, next)

	again, err := BuildPosition(def, b)
	require.NoError(t, err)
	assert.Equal(t, pos, again)

	_, err = BuildPosition(def, uuid.New())
	assert.ErrorIs(t, err, ErrSetNotInChain)
}

func TestBuildPosition_InvalidChain(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	_, err := BuildPosition(nil, a)
	assert.ErrorIs(t, err, ErrInvalidChain)

	gap := &model.ChainDefinition{Sets: []model.ChainSet{{SetNumber: 1, SetID: a}, {SetNumber: 3, SetID: b}}}
	_, err = BuildPosition(gap, a)
	assert.ErrorIs(t, err, ErrInvalidChain)

	length := &model.ChainDefinition{ChainLength: 5, Sets: []model.ChainSet{{SetNumber: 1, SetID: a}, {SetNumber: 2, SetID: b}}}
	_, err = BuildPosition(length, a)
	assert.ErrorIs(t, err, ErrInvalidChain)
}

func TestContinuityService_BackendWinsOverToken(t *testing.T) {
	examID := uuid.New()
	chain := newFakeChain(examID, 3, 30)
	tokens := NewChainTokenService("secret", time.Hour)
	svc := NewContinuityService(chain, tokens, zerolog.Nop())
	ctx := context.Background()
	setID := chain.sets[1].ID

	forged, err := tokens.Issue(7, model.ChainPosition{ExamID: examID, SetID: setID, SetNumber: 3, ChainLength: 3})
	require.NoError(t, err)

	for _, token := range []string{"", forged, "garbage"} {
		pos, err := svc.ResolveWithToken(ctx, 7, examID, setID, token)
		require.NoError(t, err)
		assert.Equal(t, 2, pos.SetNumber)
		assert.Equal(t, 3, pos.ChainLength)
	}
}
