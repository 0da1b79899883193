package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

func TestReject(t *testing.T) {
	tests := []struct {
		outcome    Outcome
		wantStatus int
		wantCode   string
	}{
		{OutcomeRejectUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
		{OutcomeRejectForbidden, http.StatusForbidden, "FORBIDDEN"},
		{OutcomeProceed, http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			err := Reject("/api/users/me", tt.outcome)

			var de *apperrors.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantStatus, de.HTTPStatus)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, map[string]any{"path": "/api/users/me"}, de.Details)
			assert.Nil(t, de.Err)
		})
	}

	assert.Equal(t, Reject("/a", OutcomeRejectUnauthenticated).Error(), Reject("/b", OutcomeRejectUnauthenticated).Error())
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("s3cret!", 1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NoError(t, ComparePassword(hash, "s3cret!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
	assert.ErrorIs(t, ComparePasswordUnknownUser("s3cret!", bcrypt.MinCost), bcrypt.ErrMismatchedHashAndPassword)
}
