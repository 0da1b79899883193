package auth

import (
	"net/http"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

const (
	unauthorizedMessage = "full authentication is required to access this resource"
	forbiddenMessage    = "access is denied"
)

// Reject builds the error response for a rejected request. The body never says
// why authentication failed; it carries only a fixed message and the request path.
// Any outcome other than OutcomeRejectForbidden is reported as unauthorized.
func Reject(path string, outcome Outcome) error {
	details := map[string]any{"path": path}
	if outcome == OutcomeRejectForbidden {
		return apperrors.NewDomainError("FORBIDDEN", forbiddenMessage, http.StatusForbidden, details)
	}
	return apperrors.NewDomainError("UNAUTHORIZED", unauthorizedMessage, http.StatusUnauthorized, details)
}
