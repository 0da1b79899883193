package auth

import (
	"context"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// IdentityStore resolves the identity behind a token subject. Implementations
// return domain.ErrIdentityNotFound when the subject is unknown; any other
// error is a lookup failure. The authenticator treats both as unauthenticated.
type IdentityStore interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error)
}
