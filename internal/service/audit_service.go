package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/events"
)

// AuditService writes authentication events to the audit log.
type AuditService struct {
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{logger: logger.Named("audit")}
}

// EventTypes lists the events the audit log records.
func (a *AuditService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventIdentityRegistered,
		events.EventSigninSucceeded,
		events.EventSigninFailed,
	}
}

// Handle writes one event to the audit log.
func (a *AuditService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventIdentityRegistered:
		return a.handleIdentityRegistered(ctx, event)
	case events.EventSigninSucceeded:
		return a.handleSigninSucceeded(ctx, event)
	case events.EventSigninFailed:
		return a.handleSigninFailed(ctx, event)
	default:
		return fmt.Errorf("audit: unsupported event type %q", event.Type)
	}
}

func (a *AuditService) handleIdentityRegistered(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.IdentityRegisteredPayload); ok {
		fields = append(fields,
			zap.String("identity_id", p.IdentityID),
			zap.String("email", p.Email),
			zap.Any("roles", p.Roles))
	}
	a.logger.Info("IdentityRegistered", fields...)
	return nil
}

func (a *AuditService) handleSigninSucceeded(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.SigninSucceededPayload); ok {
		fields = append(fields,
			zap.String("identity_id", p.IdentityID),
			zap.Time("expires_at", p.ExpiresAt))
	}
	a.logger.Info("SigninSucceeded", fields...)
	return nil
}

func (a *AuditService) handleSigninFailed(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.SigninFailedPayload); ok {
		fields = append(fields, zap.String("reason", string(p.Reason)))
	}
	a.logger.Warn("SigninFailed", fields...)
	return nil
}

func (a *AuditService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.Time("at", event.Timestamp),
	}
}
