package auth

import (
	"strings"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// Requirement is what a policy rule demands of the caller.
type Requirement struct {
	public bool
	roles  []domain.RoleName
}

// Public lets every request through, authenticated or not.
func Public() Requirement {
	return Requirement{public: true}
}

// Authenticated requires any authenticated caller.
func Authenticated() Requirement {
	return Requirement{}
}

// AnyRole requires an authenticated caller holding at least one of roles.
// With no roles it behaves like Authenticated.
func AnyRole(roles ...domain.RoleName) Requirement {
	return Requirement{roles: append([]domain.RoleName(nil), roles...)}
}

// decide applies the requirement to the caller; auth is nil when unauthenticated.
func (r Requirement) decide(auth *Authentication) Outcome {
	if r.public {
		return OutcomeProceed
	}
	if auth == nil {
		return OutcomeRejectUnauthenticated
	}
	if len(r.roles) > 0 && !auth.HasAnyRole(r.roles...) {
		return OutcomeRejectForbidden
	}
	return OutcomeProceed
}

func (r Requirement) String() string {
	switch {
	case r.public:
		return "public"
	case len(r.roles) == 0:
		return "authenticated"
	default:
		names := make([]string, len(r.roles))
		for i, role := range r.roles {
			names[i] = string(role)
		}
		return "any_role(" + strings.Join(names, ",") + ")"
	}
}
