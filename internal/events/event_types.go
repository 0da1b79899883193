package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdentityRegistered EventType = "identity_registered"
	EventSigninSucceeded    EventType = "signin_succeeded"
	EventSigninFailed       EventType = "signin_failed"
)

// Event represents an audit-relevant occurrence emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, subject string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// IdentityRegisteredPayload payload.
type IdentityRegisteredPayload struct {
	IdentityID string            `json:"identity_id"`
	Email      string            `json:"email"`
	Roles      []domain.RoleName `json:"roles"`
}

// SigninSucceededPayload payload.
type SigninSucceededPayload struct {
	IdentityID string    `json:"identity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SigninFailureReason says why credentials were refused. It is never sent to clients.
type SigninFailureReason string

const (
	SigninUnknownSubject SigninFailureReason = "unknown_subject"
	SigninBadPassword    SigninFailureReason = "bad_password"
)

// SigninFailedPayload payload.
type SigninFailedPayload struct {
	Reason SigninFailureReason `json:"reason"`
}
