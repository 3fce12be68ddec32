package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/security"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

var (
	// ErrOTCQuotaExceeded indicates the daily issuance quota is spent.
	ErrOTCQuotaExceeded = errors.New("one-time code daily quota exceeded")

	// ErrOTCNotFound indicates no code record exists for the identity.
	ErrOTCNotFound = errors.New("no one-time code issued")

	// ErrOTCExpired indicates the live code is past its validity window.
	ErrOTCExpired = errors.New("one-time code expired")

	// ErrOTCAlreadyUsed indicates the live code was already verified once.
	ErrOTCAlreadyUsed = errors.New("one-time code already used")

	// ErrOTCMaxAttempts indicates the per-code attempt budget is spent.
	ErrOTCMaxAttempts = errors.New("one-time code attempts exhausted")

	// ErrOTCMismatch indicates a wrong code value.
	ErrOTCMismatch = errors.New("one-time code mismatch")
)

// OTCConfig bounds issuance and verification of one-time codes.
type OTCConfig struct {
	CodeLength int
	Expiry     time.Duration
	// DailyQuota caps records created per identity per UTC calendar day.
	DailyQuota int
	// ExhaustedIncidentThreshold is the number of fully exhausted code
	// records within one day that escalates to an incident.
	ExhaustedIncidentThreshold int
}

// OTCService issues, dispatches, and verifies one-time codes. The same
// engine serves the login second factor and the first recovery step; the
// caller supplies the attempt cap because the two flows differ.
type OTCService struct {
	codes    port.OTCRepository
	auth     port.AuthRepository
	notifier port.CodeNotifier
	lockouts *LockoutService
	events   port.EventPublisher
	logger   *zap.Logger
	cfg      OTCConfig

	now func() time.Time
}

// NewOTCService constructs the one-time-code engine.
func NewOTCService(
	codes port.OTCRepository,
	auth port.AuthRepository,
	notifier port.CodeNotifier,
	lockouts *LockoutService,
	events port.EventPublisher,
	cfg OTCConfig,
	logger *zap.Logger,
) *OTCService {
	return &OTCService{
		codes:    codes,
		auth:     auth,
		notifier: notifier,
		lockouts: lockouts,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *OTCService) WithClock(now func() time.Time) *OTCService {
	s.now = now
	return s
}

// Issue generates and dispatches a fresh code for the identity, returning
// the number of codes issued today including this one. The daily quota is
// enforced before any record is created.
func (s *OTCService) Issue(ctx context.Context, user *domain.Identity, purpose string) (int, error) {
	now := s.now().UTC()
	dayStart := now.Truncate(24 * time.Hour)

	issued, err := s.codes.CountIssuedSince(ctx, user.ID, dayStart)
	if err != nil {
		return 0, fmt.Errorf("count issued codes: %w", err)
	}
	if issued >= s.cfg.DailyQuota {
		return issued, ErrOTCQuotaExceeded
	}

	value, err := security.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return issued, fmt.Errorf("generate code: %w", err)
	}

	record := domain.OneTimeCode{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Code:      value,
		CreatedAt: now,
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return issued, fmt.Errorf("persist code: %w", err)
	}

	if err := s.notifier.SendCode(ctx, s.deliveryAddress(user), value); err != nil {
		return issued + 1, fmt.Errorf("dispatch code: %w", err)
	}

	if err := s.events.PublishCodeIssued(ctx, domain.CodeIssuedEvent{
		EventID:    uuid.NewString(),
		UserID:     user.ID,
		Purpose:    purpose,
		DailyCount: issued + 1,
		IssuedAt:   now,
	}); err != nil {
		s.logger.Warn("publish code issued event", zap.Error(err))
	}

	return issued + 1, nil
}

// Verify checks the submitted value against the most recent code record.
// attemptCap differs per flow: 3 for login, 5 for recovery. The returned
// count is the attempts consumed on the live record, so callers can surface
// remaining tries.
func (s *OTCService) Verify(ctx context.Context, userID, submitted string, attemptCap int) (int, error) {
	record, err := s.codes.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrOTCNotFound
		}
		return 0, fmt.Errorf("load code: %w", err)
	}

	now := s.now().UTC()
	if record.Expired(now, s.cfg.Expiry) {
		return record.Attempts, ErrOTCExpired
	}
	if record.IsVerified {
		return record.Attempts, ErrOTCAlreadyUsed
	}
	if record.Attempts >= attemptCap {
		s.escalateExhausted(ctx, userID, attemptCap)
		return record.Attempts, ErrOTCMaxAttempts
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(submitted)) != 1 {
		attempts, err := s.codes.IncrementAttempts(ctx, record.ID)
		if err != nil {
			return record.Attempts, fmt.Errorf("increment attempts: %w", err)
		}
		if attempts >= attemptCap {
			s.escalateExhausted(ctx, userID, attemptCap)
		}
		return attempts, ErrOTCMismatch
	}

	if err := s.codes.MarkVerified(ctx, record.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent request verified this record first.
			return record.Attempts, ErrOTCAlreadyUsed
		}
		return record.Attempts, fmt.Errorf("mark verified: %w", err)
	}

	return record.Attempts, nil
}

// escalateExhausted opens an OTC-quota incident when a disabled account has
// burned through enough codes today. A single exhausted code is not enough;
// the coarser daily threshold filters ordinary typo storms.
func (s *OTCService) escalateExhausted(ctx context.Context, userID string, attemptCap int) {
	record, err := s.auth.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("load auth record for escalation", zap.Error(err))
		return
	}
	if !record.IsDisabled {
		return
	}

	dayStart := s.now().UTC().Truncate(24 * time.Hour)
	exhausted, err := s.codes.CountExhaustedSince(ctx, userID, dayStart, attemptCap)
	if err != nil {
		s.logger.Warn("count exhausted codes", zap.Error(err))
		return
	}
	if exhausted < s.cfg.ExhaustedIncidentThreshold {
		return
	}

	if err := s.lockouts.OpenIncidentIfAbsent(ctx, userID, domain.IncidentOTCQuotaExceeded); err != nil {
		s.logger.Warn("open otc quota incident", zap.Error(err))
	}
}

func (s *OTCService) deliveryAddress(user *domain.Identity) string {
	if user.Phone != nil && *user.Phone != "" {
		return *user.Phone
	}
	return user.Email
}
