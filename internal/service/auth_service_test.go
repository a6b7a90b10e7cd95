package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/model"
)

type fakeUserStore struct {
	byID       map[uuid.UUID]*model.User
	byUsername map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:       make(map[uuid.UUID]*model.User),
		byUsername: make(map[string]*model.User),
	}
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	cp := *u
	f.byID[u.ID] = &cp
	f.byUsername[u.Username] = &cp
	return nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func newAuthFixture() (*AuthService, *fakeUserStore) {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4, // keep the tests fast
	}
	store := newFakeUserStore()
	return NewAuthService(cfg, store), store
}

func TestRegister_DefaultsToCandidate(t *testing.T) {
	svc, _ := newAuthFixture()

	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		FullName: "J. Doe",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleCandidate, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestRegister_ExplicitRecruiterRole(t *testing.T) {
	svc, _ := newAuthFixture()

	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "recruiter1",
		Email:    "r@example.com",
		FullName: "Recruiter",
		Password: "secret123",
		Role:     model.RoleRecruiter,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleRecruiter, user.Role)
}

func TestLogin_Succeeds(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	registered, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		FullName: "J. Doe",
		Password: "secret123",
	})
	require.NoError(t, err)

	token, user, err := svc.Login(ctx, &model.LoginRequest{Username: "jdoe", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, user.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		FullName: "J. Doe",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, &model.LoginRequest{Username: "jdoe", Password: "nope12"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _ := newAuthFixture()

	_, _, err := svc.Login(context.Background(), &model.LoginRequest{Username: "ghost", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthFixture()

	user := &model.User{ID: uuid.New(), Username: "jdoe", Role: model.RoleRecruiter}
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleRecruiter, claims.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc, _ := newAuthFixture()

	token, err := svc.GenerateToken(&model.User{ID: uuid.New(), Role: model.RoleCandidate})
	require.NoError(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "different", JWTExpiry: time.Hour, BcryptCost: 4}, newFakeUserStore())
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	svc, _ := newAuthFixture()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateToken(&model.User{ID: uuid.New(), Role: model.RoleCandidate})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
