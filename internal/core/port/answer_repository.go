package port

import (
	"context"
	"time"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// AnswerRepository reads and migrates security question answers.
type AnswerRepository interface {
	ListByUserID(ctx context.Context, userID string) ([]domain.SecurityAnswer, error)
	GetByQuestionID(ctx context.Context, userID, questionID string) (*domain.SecurityAnswer, error)
	// UpdateAnswerHash replaces legacy plaintext material with a hash.
	// Migration is one-way and only performed after a verified match.
	UpdateAnswerHash(ctx context.Context, id, answerHash, answerAlgo string, updatedAt time.Time) error
}
