package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memory-portal/internal/db"
	"memory-portal/internal/models"
)

type memStore struct {
	profiles map[string]models.UserProfile
	getErr   error
	saveErr  error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]models.UserProfile)}
}

func (s *memStore) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) SaveProfile(_ context.Context, p *models.UserProfile) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.profiles[p.ID] = *p
	return nil
}

func TestGetOrCreateCreatesOnFirstAccess(t *testing.T) {
	store := newMemStore()
	svc := New(store, zap.NewNop())

	p, err := svc.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, DefaultName, p.Name)
	assert.Equal(t, 1, store.saves)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := New(store, zap.NewNop())

	first, err := svc.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)

	second, err := svc.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.saves, "second call must not create a duplicate")
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	store := newMemStore()
	store.profiles["user-1"] = models.UserProfile{
		ID:                "user-1",
		Name:              "Margaret",
		AvatarImageURL:    "https://img/margaret.png",
		PersonalityTraits: "warm, funny",
	}
	svc := New(store, zap.NewNop())

	p, err := svc.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Margaret", p.Name)
	assert.Equal(t, "https://img/margaret.png", p.AvatarImageURL)
	assert.Zero(t, store.saves)
}

func TestGetOrCreateSurfacesFetchFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("db locked")
	svc := New(store, zap.NewNop())

	_, err := svc.GetOrCreate(context.Background(), "user-1")
	require.Error(t, err)
	assert.Zero(t, store.saves, "only NotFound triggers creation")
}
