package port

import (
	"context"
	"time"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// OTCRepository manages the append-only one-time-code audit trail.
// Records are never deleted; the latest record per identity is live.
type OTCRepository interface {
	Create(ctx context.Context, code domain.OneTimeCode) error
	GetLatestByUserID(ctx context.Context, userID string) (*domain.OneTimeCode, error)
	// IncrementAttempts atomically bumps the attempt counter and returns
	// the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// MarkVerified flips is_verified exactly once; implementations must
	// report domain conflicts when the record was already verified.
	MarkVerified(ctx context.Context, id string) error
	CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountExhaustedSince(ctx context.Context, userID string, since time.Time, attemptCap int) (int, error)
}
