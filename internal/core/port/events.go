package port

import (
	"context"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// EventPublisher publishes account-security events to the message bus.
// Publishing is best-effort; callers log failures and continue.
type EventPublisher interface {
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishIncidentOpened(ctx context.Context, event domain.IncidentOpenedEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
	PublishCodeIssued(ctx context.Context, event domain.CodeIssuedEvent) error
}
