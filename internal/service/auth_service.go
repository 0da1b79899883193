package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/config"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/events"
	"github.com/spec-kit/auth-gate/internal/repository"
)

// ErrInvalidCredentials is returned for any failed sign-in, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService coordinates registration and sign-in flows.
type AuthService struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenCodec
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Identities repository.IdentityRepository
	Tokens     *auth.TokenCodec
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		identities: deps.Identities,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

// SignupInput carries validated registration fields.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Roles    []string
}

// SigninResult is returned for accepted credentials.
type SigninResult struct {
	Identity *domain.Identity
	Token    auth.IssuedToken
}

// Signup registers a new identity.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.Identity, error) {
	taken, err := s.identities.ExistsBySubjectID(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: username is already taken", domain.ErrIdentityExists)
	}

	taken, err = s.identities.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already in use", domain.ErrIdentityExists)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        MapRequestedRoles(in.Roles),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventIdentityRegistered, identity.SubjectID(), s.now(), events.IdentityRegisteredPayload{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Roles:      identity.Roles,
	}))
	return identity, nil
}

// Signin checks credentials and issues a bearer token.
func (s *AuthService) Signin(ctx context.Context, username, password string) (*SigninResult, error) {
	identity, err := s.identities.FindBySubjectID(ctx, username)
	if errors.Is(err, domain.ErrIdentityNotFound) || (err == nil && identity == nil) {
		_ = auth.ComparePasswordUnknownUser(password, s.bcryptCost)
		s.signinFailed(ctx, username, events.SigninUnknownSubject)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil {
		s.signinFailed(ctx, username, events.SigninBadPassword)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.SubjectID(), s.tokens.DefaultTTL())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventSigninSucceeded, identity.SubjectID(), s.now(), events.SigninSucceededPayload{
		IdentityID: identity.ID,
		ExpiresAt:  token.ExpiresAt,
	}))
	return &SigninResult{Identity: identity, Token: token}, nil
}

func (s *AuthService) signinFailed(ctx context.Context, username string, reason events.SigninFailureReason) {
	s.publish(ctx, events.NewEvent(events.EventSigninFailed, username, s.now(), events.SigninFailedPayload{Reason: reason}))
}

// publish never fails the calling flow; audit delivery problems are logged.
func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// MapRequestedRoles translates sign-up role names into granted roles. Unknown
// names and an empty request both grant ROLE_USER.
func MapRequestedRoles(requested []string) []domain.RoleName {
	if len(requested) == 0 {
		return []domain.RoleName{domain.RoleUser}
	}

	seen := make(map[domain.RoleName]bool, len(requested))
	roles := make([]domain.RoleName, 0, len(requested))
	for _, name := range requested {
		role := domain.RoleUser
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "admin":
			role = domain.RoleAdmin
		case "mod":
			role = domain.RoleModerator
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles
}
