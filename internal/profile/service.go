package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"memory-portal/internal/db"
	"memory-portal/internal/models"
)

// DefaultName is used when a profile is created lazily, before the user
// has filled anything in.
const DefaultName = "Loved One"

type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, p *models.UserProfile) error
}

// Service implements the get-or-create bootstrap for user profiles.
type Service struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// GetOrCreate fetches the profile for userID, creating it with defaults
// if it does not exist yet. Repeated calls return the same profile; only
// a missing record triggers creation, any other fetch failure surfaces
// unchanged.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("profile: fetch: %w", err)
	}

	created := &models.UserProfile{
		ID:   userID,
		Name: DefaultName,
	}
	if err := s.store.SaveProfile(ctx, created); err != nil {
		return nil, fmt.Errorf("profile: create: %w", err)
	}
	s.logger.Info("created profile", zap.String("userID", userID))
	return created, nil
}
