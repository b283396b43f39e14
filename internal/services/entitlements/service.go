package entitlements

import (
	"context"
	"errors"
	"fmt"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	IsEntitled(ctx context.Context, userID, courseID int64) (bool, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]pgrepo.EntitlementRecord, error)
}

// Service answers access questions. Grants and revocations happen inside the
// payment and refund transactions; this service only reads the materialized
// relation.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) IsEntitled(ctx context.Context, userID, courseID int64) (bool, error) {
	if userID <= 0 || courseID <= 0 {
		return false, ErrValidation
	}
	if s.store == nil {
		return false, fmt.Errorf("entitlement store is nil")
	}

	return s.store.IsEntitled(ctx, userID, courseID)
}

func (s *Service) ListActive(ctx context.Context, userID int64) ([]pgrepo.EntitlementRecord, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("entitlement store is nil")
	}

	return s.store.ListActiveByUser(ctx, userID)
}
