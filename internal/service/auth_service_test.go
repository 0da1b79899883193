package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/config"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/events"
)

// MockIdentityRepository is a mock implementation of repository.IdentityRepository
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockIdentityRepository) ExistsBySubjectID(ctx context.Context, subjectID string) (bool, error) {
	args := m.Called(ctx, subjectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recorded struct {
	events []events.Event
}

func newTestService(t *testing.T, repo *MockIdentityRepository) (*AuthService, *auth.TokenCodec, *recorded) {
	t.Helper()
	codec, err := auth.NewTokenCodec([]byte("0123456789abcdef0123456789abcdef"),
		auth.WithClock(func() time.Time { return fixedNow }),
		auth.WithDefaultTTL(time.Hour))
	require.NoError(t, err)

	rec := &recorded{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventIdentityRegistered, events.EventSigninSucceeded, events.EventSigninFailed} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			rec.events = append(rec.events, e)
			return nil
		})
	}

	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		Identities: repo,
		Tokens:     codec,
		Dispatcher: dispatcher,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, codec, rec
}

func storedIdentity(t *testing.T, password string) *domain.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.Identity{
		ID:           "id-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		Roles:        []domain.RoleName{domain.RoleUser},
	}
}

func TestSigninSuccess(t *testing.T) {
	repo := new(MockIdentityRepository)
	repo.On("FindBySubjectID", mock.Anything, "alice").Return(storedIdentity(t, "s3cret!"), nil)
	svc, codec, rec := newTestService(t, repo)

	result, err := svc.Signin(context.Background(), "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Identity.Username)
	assert.True(t, fixedNow.Add(time.Hour).Equal(result.Token.ExpiresAt))

	subject, err := codec.Validate(result.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.EventSigninSucceeded, rec.events[0].Type)
	repo.AssertExpectations(t)
}

func TestSigninRejections(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*MockIdentityRepository)
		password   string
		wantReason events.SigninFailureReason
	}{
		{
			name: "unknown user",
			setup: func(r *MockIdentityRepository) {
				r.On("FindBySubjectID", mock.Anything, "alice").Return(nil, domain.ErrIdentityNotFound)
			},
			password:   "s3cret!",
			wantReason: events.SigninUnknownSubject,
		},
		{
			name: "wrong password",
			setup: func(r *MockIdentityRepository) {
				r.On("FindBySubjectID", mock.Anything, "alice").Return(storedIdentity(t, "s3cret!"), nil)
			},
			password:   "guess",
			wantReason: events.SigninBadPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockIdentityRepository)
			tt.setup(repo)
			svc, _, rec := newTestService(t, repo)

			result, err := svc.Signin(context.Background(), "alice", tt.password)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidCredentials)

			require.Len(t, rec.events, 1)
			assert.Equal(t, events.EventSigninFailed, rec.events[0].Type)
			assert.Equal(t, events.SigninFailedPayload{Reason: tt.wantReason}, rec.events[0].Payload)
		})
	}
}

func TestSigninStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	repo := new(MockIdentityRepository)
	repo.On("FindBySubjectID", mock.Anything, "alice").Return(nil, boom)
	svc, _, rec := newTestService(t, repo)

	_, err := svc.Signin(context.Background(), "alice", "s3cret!")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.events)
}

func TestSignup(t *testing.T) {
	repo := new(MockIdentityRepository)
	repo.On("ExistsBySubjectID", mock.Anything, "bob").Return(false, nil)
	repo.On("ExistsByEmail", mock.Anything, "bob@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(i *domain.Identity) bool {
		return i.Username == "bob" && i.PasswordHash != "p4ssword" &&
			bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte("p4ssword")) == nil
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Identity).ID = "id-2"
	}).Return(nil)
	svc, _, rec := newTestService(t, repo)

	identity, err := svc.Signup(context.Background(), SignupInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "p4ssword",
		Roles:    []string{"mod", "admin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-2", identity.ID)
	assert.Equal(t, []domain.RoleName{domain.RoleModerator, domain.RoleAdmin}, identity.Roles)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.EventIdentityRegistered, rec.events[0].Type)
	assert.Equal(t, "bob", rec.events[0].Subject)
	repo.AssertExpectations(t)
}

func TestSignupConflicts(t *testing.T) {
	t.Run("username taken", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("ExistsBySubjectID", mock.Anything, "bob").Return(true, nil)
		svc, _, _ := newTestService(t, repo)

		_, err := svc.Signup(context.Background(), SignupInput{Username: "bob", Email: "bob@example.com", Password: "p4ssword"})
		assert.ErrorIs(t, err, domain.ErrIdentityExists)
		assert.Contains(t, err.Error(), "username")
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("ExistsBySubjectID", mock.Anything, "bob").Return(false, nil)
		repo.On("ExistsByEmail", mock.Anything, "bob@example.com").Return(true, nil)
		svc, _, _ := newTestService(t, repo)

		_, err := svc.Signup(context.Background(), SignupInput{Username: "bob", Email: "bob@example.com", Password: "p4ssword"})
		assert.ErrorIs(t, err, domain.ErrIdentityExists)
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("lost race on insert", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("ExistsBySubjectID", mock.Anything, "bob").Return(false, nil)
		repo.On("ExistsByEmail", mock.Anything, "bob@example.com").Return(false, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrIdentityExists)
		svc, _, rec := newTestService(t, repo)

		_, err := svc.Signup(context.Background(), SignupInput{Username: "bob", Email: "bob@example.com", Password: "p4ssword"})
		assert.ErrorIs(t, err, domain.ErrIdentityExists)
		assert.Empty(t, rec.events)
	})
}

func TestMapRequestedRoles(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		want      []domain.RoleName
	}{
		{name: "empty", requested: nil, want: []domain.RoleName{domain.RoleUser}},
		{name: "admin", requested: []string{"admin"}, want: []domain.RoleName{domain.RoleAdmin}},
		{name: "mod", requested: []string{"mod"}, want: []domain.RoleName{domain.RoleModerator}},
		{name: "unknown falls back to user", requested: []string{"superuser"}, want: []domain.RoleName{domain.RoleUser}},
		{name: "duplicates collapse", requested: []string{"user", "banana", "user"}, want: []domain.RoleName{domain.RoleUser}},
		{name: "case insensitive", requested: []string{" Admin ", "MOD"}, want: []domain.RoleName{domain.RoleAdmin, domain.RoleModerator}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapRequestedRoles(tt.requested))
		})
	}
}
