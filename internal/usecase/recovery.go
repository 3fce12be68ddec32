package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/logger"
	"github.com/shiftwise/workforce-iam/internal/infra/security"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

var (
	// ErrRecoveryStageInvalid collapses every recovery-token failure
	// (missing, malformed, expired, wrong stage, wrong owner) into one
	// class so callers learn nothing about which check failed.
	ErrRecoveryStageInvalid = errors.New("recovery token invalid for this stage")

	// ErrRecoveryRateLimited indicates the identifier hit the sliding
	// window on recovery initiation.
	ErrRecoveryRateLimited = errors.New("too many recovery requests")

	// ErrWeakPassword indicates the replacement password failed policy.
	ErrWeakPassword = errors.New("password does not meet policy")
)

// RecoveryConfig bounds the recovery flow.
type RecoveryConfig struct {
	// CodeAttemptCap is the per-code budget for the recovery flow. It is
	// looser than the login cap and still bounded by the daily issuance
	// quota.
	CodeAttemptCap int

	RateWindow      time.Duration
	RateMaxRequests int
}

// IssuedToken is a minted recovery token plus its expiry for the cookie.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

/// RecoveryService drives the staged account-recovery protocol: code
// verification, then a knowledge challenge, then the password reset.
// Stage progress lives in the bearer token, not in server state.
type RecoveryService struct {
	users     port.UserRepository
	auth      port.AuthRepository
	otc       *OTCService
	questions *QuestionService
	tokens    *security.TokenCodec
	hasher    port.CredentialHasher
	passwords *security.PasswordValidator
	rates     port.RateLimitStore
	events    port.EventPublisher
	logger    *zap.Logger
	cfg       RecoveryConfig

	now func() time.Time
}

// NewRecoveryService constructs the recovery orchestrator.
func NewRecoveryService(
	users port.UserRepository,
	auth port.AuthRepository,
	otc *OTCService,
	questions *QuestionService,
	tokens *security.TokenCodec,
	hasher port.CredentialHasher,
	passwords *security.PasswordValidator,
	rates port.RateLimitStore,
	events port.EventPublisher,
	cfg RecoveryConfig,
	log *zap.Logger,
) *RecoveryService {
	return &RecoveryService{
		users:     users,
		auth:      auth,
		otc:       otc,
		questions: questions,
		tokens:    tokens,
		hasher:    hasher,
		passwords: passwords,
		rates:     rates,
		events:    events,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *RecoveryService) WithClock(now func() time.Time) *RecoveryService {
	s.now = now
	return s
}

// Start issues a recovery code for the identifier. Whether or not the
// identifier exists, and whether or not issuance succeeded, the caller sees
// the same "if eligible, a code was sent" response. Only the rate limit is
// surfaced distinctly.
func (s *RecoveryService) Start(ctx context.Context, identifier string) error {
	now := s.now().UTC()

	if err := s.rates.TrimWindow(ctx, identifier, s.cfg.RateWindow, now); err != nil {
		s.logger.Warn("trim recovery rate window", zap.Error(err))
	}
	count, err := s.rates.CountAttempts(ctx, identifier, s.cfg.RateWindow, now)
	if err != nil {
		s.logger.Warn("count recovery attempts", zap.Error(err))
	} else if count >= s.cfg.RateMaxRequests {
		return ErrRecoveryRateLimited
	}
	if err := s.rates.RecordAttempt(ctx, identifier, now); err != nil {
		s.logger.Warn("record recovery attempt", zap.Error(err))
	}

	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("lookup recovery identifier", zap.Error(err))
		}
		// Unknown identifiers fall through to the generic response.
		return nil
	}

	if _, err := s.otc.Issue(ctx, user, "recovery"); err != nil {
		// Quota and delivery failures stay internal; surfacing them would
		// confirm the account exists.
		s.logger.Warn("issue recovery code",
			zap.String("email", logger.MaskEmail(identifier)),
			zap.Error(err),
		)
	}

	return nil
}

// VerifyCode checks the submitted code and, on success, mints the
// first-stage recovery token. Unknown identifiers report a plain mismatch.
func (s *RecoveryService) VerifyCode(ctx context.Context, identifier, code string) (*IssuedToken, int, error) {
	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrOTCMismatch
		}
		return nil, 0, fmt.Errorf("lookup identifier: %w", err)
	}

	attempts, err := s.otc.Verify(ctx, user.ID, code, s.cfg.CodeAttemptCap)
	if err != nil {
		return nil, attempts, err
	}

	token, expiresAt, err := s.tokens.MintRecovery(user.ID, domain.StageOTPVerified)
	if err != nil {
		return nil, attempts, fmt.Errorf("mint recovery token: %w", err)
	}

	return &IssuedToken{Token: token, ExpiresAt: expiresAt}, attempts, nil
}

// Challenge returns a random security question for the token holder.
// Requires a first-stage token.
func (s *RecoveryService) Challenge(ctx context.Context, token string) (*Challenge, error) {
	claims, err := s.tokens.VerifyRecovery(token, domain.StageOTPVerified)
	if err != nil {
		return nil, ErrRecoveryStageInvalid
	}

	return s.questions.GetChallenge(ctx, claims.UserID)
}

// VerifyAnswer validates the knowledge challenge and, on success, upgrades
// the token to the second stage, preserving the remaining lifetime.
func (s *RecoveryService) VerifyAnswer(ctx context.Context, token, questionID, answer string) (*IssuedToken, *AnswerResult, error) {
	claims, err := s.tokens.VerifyRecovery(token, domain.StageOTPVerified)
	if err != nil {
		return nil, nil, ErrRecoveryStageInvalid
	}

	result, err := s.questions.VerifyAnswer(ctx, claims.UserID, questionID, answer)
	if err != nil {
		return nil, result, err
	}

	upgraded, expiresAt, err := s.tokens.UpgradeRecovery(token, domain.StageOTPVerified, domain.StageQuestionVerified)
	if err != nil {
		return nil, result, ErrRecoveryStageInvalid
	}

	return &IssuedToken{Token: upgraded, ExpiresAt: expiresAt}, result, nil
}

// ResetPassword commits the new password. Requires a second-stage token.
// Success clears every failure budget: failed_attempts, question_attempts,
// and is_disabled, since a verified identity plus knowledge factor
// re-proves trust. The transport deletes the recovery cookie afterwards.
func (s *RecoveryService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.VerifyRecovery(token, domain.StageQuestionVerified)
	if err != nil {
		return ErrRecoveryStageInvalid
	}

	if err := s.passwords.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.auth.UpdatePassword(ctx, claims.UserID, hashed, domain.CredentialAlgoArgon2id, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.auth.ClearFailureState(ctx, claims.UserID); err != nil {
		return fmt.Errorf("clear failure state: %w", err)
	}

	s.logger.Info("password reset completed", zap.String("user_id", claims.UserID))

	if err := s.events.PublishPasswordReset(ctx, domain.PasswordResetEvent{
		EventID: uuid.NewString(),
		UserID:  claims.UserID,
		ResetAt: now,
	}); err != nil {
		s.logger.Warn("publish password reset event", zap.Error(err))
	}

	return nil
}
