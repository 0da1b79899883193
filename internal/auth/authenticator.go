package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/observability"
)

const (
	authenticationKey = "auth_authentication"
	bearerPrefix      = "Bearer "
)

type contextKey struct{}

// Authentication is the request-scoped result of a successful bearer token check.
type Authentication struct {
	Subject  string
	Identity domain.Identity
	Roles    []domain.RoleName
}

// HasAnyRole reports whether the caller holds at least one of roles.
func (a *Authentication) HasAnyRole(roles ...domain.RoleName) bool {
	if a == nil {
		return false
	}
	for _, held := range a.Roles {
		for _, want := range roles {
			if held == want {
				return true
			}
		}
	}
	return false
}

// Result labels used for diagnostics and metrics.
const (
	resultAuthenticated        = "authenticated"
	resultNoCredentials        = "no_credentials"
	resultTokenMalformed       = "token_malformed"
	resultTokenBadSignature    = "token_bad_signature"
	resultTokenExpired         = "token_expired"
	resultIdentityNotFound     = "identity_not_found"
	resultIdentityLookupFailed = "identity_lookup_failed"
	resultInternalFault        = "internal_fault"
)

// Authenticator resolves the caller of each request from its bearer token.
type Authenticator struct {
	tokens     *TokenCodec
	identities IdentityStore
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuthenticator constructs the authenticator.
func NewAuthenticator(tokens *TokenCodec, identities IdentityStore, logger *zap.Logger, metrics *observability.Metrics) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, identities: identities, logger: logger, metrics: metrics}
}

// Authenticate returns the caller for an Authorization header value, or nil when
// the request carries no usable credentials. It never fails and never panics.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (result *Authentication) {
	outcome := resultInternalFault
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("authentication aborted", zap.Any("panic", r))
			result = nil
			outcome = resultInternalFault
		}
		a.metrics.RecordAuthentication(outcome)
	}()

	token, ok := bearerToken(authorization)
	if !ok {
		outcome = resultNoCredentials
		return nil
	}

	subject, err := a.tokens.Validate(token)
	if err != nil {
		outcome = tokenFailure(err)
		a.logger.Debug("bearer token rejected", zap.String("reason", outcome))
		return nil
	}

	identity, err := a.identities.FindBySubjectID(ctx, subject)
	if err != nil || identity == nil {
		outcome = resultIdentityLookupFailed
		if errors.Is(err, domain.ErrIdentityNotFound) || (err == nil && identity == nil) {
			outcome = resultIdentityNotFound
			a.logger.Debug("token subject unknown", zap.String("reason", outcome))
		} else {
			a.logger.Warn("identity lookup failed", zap.String("reason", outcome), zap.Error(err))
		}
		return nil
	}

	outcome = resultAuthenticated
	roles := append([]domain.RoleName(nil), identity.Roles...)
	resolved := *identity
	resolved.Roles = roles
	return &Authentication{Subject: subject, Identity: resolved, Roles: roles}
}

// Handle is the pipeline stage. It records the result for this request only and
// always continues; the policy stage decides whether the request may proceed.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	result := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))

	c.Locals(authenticationKey, result)
	c.SetUserContext(context.WithValue(c.UserContext(), contextKey{}, result))

	if result != nil {
		a.logger.Debug("request authenticated",
			zap.String("request_id", observability.RequestID(c)),
			zap.String("subject", result.Subject))
	}
	return c.Next()
}

// AuthenticationFrom returns the caller of the current request, or nil when unauthenticated.
func AuthenticationFrom(c *fiber.Ctx) *Authentication {
	result, _ := c.Locals(authenticationKey).(*Authentication)
	return result
}

// AuthenticationFromContext is AuthenticationFrom for code that only holds the request context.
func AuthenticationFromContext(ctx context.Context) *Authentication {
	result, _ := ctx.Value(contextKey{}).(*Authentication)
	return result
}

// bearerToken strips the literal "Bearer " scheme marker.
func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenFailure(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return resultTokenExpired
	case errors.Is(err, ErrTokenBadSignature):
		return resultTokenBadSignature
	default:
		return resultTokenMalformed
	}
}
