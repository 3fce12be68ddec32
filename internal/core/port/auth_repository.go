package port

import (
	"context"
	"time"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// AuthRepository persists the mutable authentication state per identity.
// Increment operations are atomic at the store level and return the new
// counter value, so concurrent failures cannot under- or double-count.
type AuthRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.AuthRecord, error)
	UpdatePassword(ctx context.Context, userID, passwordHash, passwordAlgo string, changedAt time.Time) error
	IncrementFailedAttempts(ctx context.Context, userID string, at time.Time) (int, error)
	IncrementQuestionAttempts(ctx context.Context, userID string, at time.Time) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	ResetQuestionAttempts(ctx context.Context, userID string) error
	SetDisabled(ctx context.Context, userID string, disabled bool) error
	ClearFailureState(ctx context.Context, userID string) error
}
