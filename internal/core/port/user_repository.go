package port

import (
	"context"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// UserRepository reads identity rows owned by the credential store.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}
