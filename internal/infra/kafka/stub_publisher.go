package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountLocked logs iam.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"user_id":   event.UserID,
		"surface":   event.Surface,
		"locked_at": event.LockedAt,
		"metadata":  event.Metadata,
	}
	p.logEvent("iam.account.locked", event.UserID, event.LockedAt, payload)
	return nil
}

// PublishIncidentOpened logs iam.incident.opened events.
func (p *StubPublisher) PublishIncidentOpened(_ context.Context, event domain.IncidentOpenedEvent) error {
	payload := map[string]any{
		"incident_id": event.IncidentID,
		"user_id":     event.UserID,
		"type":        event.Type,
		"dedupe_key":  event.DedupeKey,
		"opened_at":   event.OpenedAt,
	}
	p.logEvent("iam.incident.opened", event.UserID, event.OpenedAt, payload)
	return nil
}

// PublishPasswordReset logs iam.account.password.reset events.
func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	payload := map[string]any{
		"user_id":  event.UserID,
		"reset_at": event.ResetAt,
		"metadata": event.Metadata,
	}
	p.logEvent("iam.account.password.reset", event.UserID, event.ResetAt, payload)
	return nil
}

// PublishCodeIssued logs iam.otc.issued events.
func (p *StubPublisher) PublishCodeIssued(_ context.Context, event domain.CodeIssuedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"purpose":     event.Purpose,
		"daily_count": event.DailyCount,
		"issued_at":   event.IssuedAt,
	}
	p.logEvent("iam.otc.issued", event.UserID, event.IssuedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
