package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const chainTokenIssuer = "exstem-proctor/chain"

// ChainClaims bind a student to one hop of a chain.
type ChainClaims struct {
	jwt.RegisteredClaims
	StudentID   int       `json:"student_id"`
	ExamID      uuid.UUID `json:"exam_id"`
	SetID       uuid.UUID `json:"set_id"`
	SetNumber   int       `json:"set_number"`
	ChainLength int       `json:"chain_length"`
}

// ChainTokenService signs and verifies the chain token threaded through each
// set-to-set navigation hop.
type ChainTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewChainTokenService creates a new ChainTokenService.
func NewChainTokenService(secret string, ttl time.Duration) *ChainTokenService {
	return &ChainTokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the given position.
func (s *ChainTokenService) Issue(studentID int, pos model.ChainPosition) (string, error) {
	now := s.now()
	claims := ChainClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    chainTokenIssuer,
			Subject:   strconv.Itoa(studentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		StudentID:   studentID,
		ExamID:      pos.ExamID,
		SetID:       pos.SetID,
		SetNumber:   pos.SetNumber,
		ChainLength: pos.ChainLength,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign chain token: %w", err)
	}
	return signed, nil
}

// Verify parses a chain token issued for studentID.
func (s *ChainTokenService) Verify(tokenStr string, studentID int) (*ChainClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ChainClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(chainTokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainTokenInvalid, err)
	}

	claims, ok := token.Claims.(*ChainClaims)
	if !ok || !token.Valid {
		return nil, ErrChainTokenInvalid
	}
	if claims.StudentID != studentID {
		return nil, fmt.Errorf("%w: issued for another student", ErrChainTokenInvalid)
	}
	return claims, nil
}

// Agrees reports whether the claims describe the same hop as pos.
func (c *ChainClaims) Agrees(pos *model.ChainPosition) error {
	switch {
	case c.ExamID != pos.ExamID:
		return errors.New("exam mismatch")
	case c.SetID != pos.SetID:
		return errors.New("set mismatch")
	case c.SetNumber != pos.SetNumber:
		return fmt.Errorf("set number %d, backend says %d", c.SetNumber, pos.SetNumber)
	case c.ChainLength != pos.ChainLength:
		return fmt.Errorf("chain length %d, backend says %d", c.ChainLength, pos.ChainLength)
	}
	return nil
}
