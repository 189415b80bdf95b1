package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const entitlementTTL = 5 * time.Minute

// AccessService is the entitlement guard. Positive answers are cached briefly
// so reconnects do not hit PostgreSQL; denials are never cached.
type AccessService struct {
	store EntitlementStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAccessService creates a new AccessService.
func NewAccessService(store EntitlementStore, rdb *redis.Client, log zerolog.Logger) *AccessService {
	return &AccessService{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "access_service").Logger(),
	}
}

// HasAccess reports whether the student holds an entitlement for the exam.
func (s *AccessService) HasAccess(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	key := config.CacheKey.EntitlementKey(examID.String(), studentID)

	cached, err := s.rdb.Exists(ctx, key).Result()
	if err == nil && cached == 1 {
		return true, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Entitlement cache unavailable, querying database")
	}

	ok, err := s.store.HasAccess(ctx, studentID, examID)
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	if ok {
		_ = s.rdb.Set(ctx, key, 1, entitlementTTL).Err()
	}
	return ok, nil
}

// Verify returns session.ErrAccessDenied when the student holds no entitlement.
func (s *AccessService) Verify(ctx context.Context, studentID int, examID uuid.UUID) error {
	ok, err := s.HasAccess(ctx, studentID, examID)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrAccessDenied
	}
	return nil
}

// PurchasePath is where a denied student is sent.
func PurchasePath(examID uuid.UUID) string {
	return "/purchase/" + examID.String()
}
