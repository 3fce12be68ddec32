package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

var (
	// ErrNoQuestions indicates the identity has no registered pairs.
	ErrNoQuestions = errors.New("no security questions registered")

	// ErrQuestionLocked indicates the question attempt budget is spent.
	ErrQuestionLocked = errors.New("security question attempts exhausted")

	// ErrAnswerMismatch indicates a wrong answer.
	ErrAnswerMismatch = errors.New("security answer mismatch")
)

// Challenge is one question posed to the user during recovery.
type Challenge struct {
	QuestionID string
	Question   string
}

// AnswerResult reports the outcome of an answer verification.
type AnswerResult struct {
	Attempts int
	// ForcedLogout is set when this failure disabled the account; the
	// transport must clear any active session cookie.
	ForcedLogout bool
}

// QuestionService validates knowledge-based challenges with an independent
// attempt budget and lazy migration of legacy plaintext answers.
type QuestionService struct {
	auth     port.AuthRepository
	answers  port.AnswerRepository
	hasher   port.CredentialHasher
	lockouts *LockoutService
	events   port.EventPublisher
	logger   *zap.Logger

	maxFailures int
	now         func() time.Time
}

// NewQuestionService constructs the security-question verifier.
func NewQuestionService(
	auth port.AuthRepository,
	answers port.AnswerRepository,
	hasher port.CredentialHasher,
	lockouts *LockoutService,
	events port.EventPublisher,
	maxFailures int,
	logger *zap.Logger,
) *QuestionService {
	return &QuestionService{
		auth:        auth,
		answers:     answers,
		hasher:      hasher,
		lockouts:    lockouts,
		events:      events,
		logger:      logger,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *QuestionService) WithClock(now func() time.Time) *QuestionService {
	s.now = now
	return s
}

// GetChallenge selects uniformly at random among the identity's registered
// question/answer pairs.
func (s *QuestionService) GetChallenge(ctx context.Context, userID string) (*Challenge, error) {
	pairs, err := s.answers.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list security answers: %w", err)
	}
	if len(pairs) == 0 {
		return nil, ErrNoQuestions
	}

	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pairs))))
	if err != nil {
		return nil, fmt.Errorf("pick challenge: %w", err)
	}

	picked := pairs[idx.Int64()]
	return &Challenge{QuestionID: picked.QuestionID, Question: picked.Question}, nil
}

// VerifyAnswer checks the submitted answer against the stored material.
// The question attempt budget is independent of the code attempt budget.
// Disabling is a side effect of the final failure, not a pre-check; once
// disabled, subsequent calls fail on the budget check.
func (s *QuestionService) VerifyAnswer(ctx context.Context, userID, questionID, submitted string) (*AnswerResult, error) {
	record, err := s.auth.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load auth record: %w", err)
	}
	if record.QuestionAttempts >= s.maxFailures {
		return &AnswerResult{Attempts: record.QuestionAttempts}, ErrQuestionLocked
	}

	answer, err := s.answers.GetByQuestionID(ctx, userID, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// An unknown question id burns an attempt like a wrong answer;
			// a guessed id must not be a free probe.
			return s.recordFailure(ctx, userID)
		}
		return nil, fmt.Errorf("load security answer: %w", err)
	}

	normalized := NormalizeAnswer(submitted)

	var (
		match          bool
		needsMigration bool
	)
	switch answer.AnswerAlgo {
	case domain.CredentialAlgoPlaintext:
		stored := NormalizeAnswer(answer.AnswerHash)
		match = len(stored) == len(normalized) &&
			subtle.ConstantTimeCompare([]byte(stored), []byte(normalized)) == 1
		needsMigration = match
	default:
		match, err = s.hasher.Verify(normalized, answer.AnswerHash)
		if err != nil {
			return nil, fmt.Errorf("verify answer hash: %w", err)
		}
	}

	if !match {
		return s.recordFailure(ctx, userID)
	}

	if err := s.auth.ResetQuestionAttempts(ctx, userID); err != nil {
		return nil, fmt.Errorf("reset question attempts: %w", err)
	}

	if needsMigration {
		s.migrateAnswer(ctx, answer, normalized)
	}

	return &AnswerResult{}, nil
}

func (s *QuestionService) recordFailure(ctx context.Context, userID string) (*AnswerResult, error) {
	attempts, err := s.auth.IncrementQuestionAttempts(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("increment question attempts: %w", err)
	}
	if attempts < s.maxFailures {
		return &AnswerResult{Attempts: attempts}, ErrAnswerMismatch
	}

	if err := s.auth.SetDisabled(ctx, userID, true); err != nil {
		return nil, fmt.Errorf("disable account: %w", err)
	}

	if err := s.lockouts.OpenIncidentIfAbsent(ctx, userID, domain.IncidentQuestionLockout); err != nil {
		s.logger.Warn("open question lockout incident", zap.Error(err))
	}

	if err := s.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
		EventID:  uuid.NewString(),
		UserID:   userID,
		Surface:  domain.IncidentQuestionLockout,
		LockedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish account locked event", zap.Error(err))
	}

	return &AnswerResult{Attempts: attempts, ForcedLogout: true}, ErrQuestionLocked
}

// migrateAnswer lazily replaces verified legacy plaintext with a hash.
// Only a verified-correct answer is ever migrated; failures never persist
// attacker-supplied values.
func (s *QuestionService) migrateAnswer(ctx context.Context, answer *domain.SecurityAnswer, normalized string) {
	hashed, err := s.hasher.Hash(normalized)
	if err != nil {
		s.logger.Warn("hash legacy answer", zap.Error(err))
		return
	}
	if err := s.answers.UpdateAnswerHash(ctx, answer.ID, hashed, domain.CredentialAlgoArgon2id, s.now().UTC()); err != nil {
		s.logger.Warn("migrate legacy answer", zap.Error(err))
	}
}

// NormalizeAnswer trims surrounding whitespace and case-folds so that
// "  rex " and "Rex" compare equal.
func NormalizeAnswer(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
