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
	// ErrInvalidCredentials covers unknown identifiers and wrong passwords
	// alike. The two are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked indicates the account is disabled.
	ErrAccountLocked = errors.New("account locked")
)

// LoginOutcome signals which step follows a successful password check.
type LoginOutcome string

const (
	// LoginOTPRequired means a second-factor code was dispatched and the
	// login must be completed with it.
	LoginOTPRequired LoginOutcome = "otp_required"

	// LoginSetupRequired means the identity has never logged in and must
	// complete first-login setup before a session can exist.
	LoginSetupRequired LoginOutcome = "setup_required"
)

// LoginResult reports the next step after the password check.
type LoginResult struct {
	Outcome LoginOutcome
	UserID  string
}

// Session is a minted session token plus cookie metadata.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Role      domain.Role
}

// LoginConfig bounds the login flow.
type LoginConfig struct {
	MaxFailedAttempts int
	CodeAttemptCap    int
}

// LoginService authenticates credentials, enforces the failure budget, and
// gates session minting behind the second factor. No partial session is
// ever issued.
type LoginService struct {
	users    port.UserRepository
	auth     port.AuthRepository
	otc      *OTCService
	tokens   *security.TokenCodec
	hasher   port.CredentialHasher
	lockouts *LockoutService
	events   port.EventPublisher
	logger   *zap.Logger
	cfg      LoginConfig

	now func() time.Time
}

// NewLoginService constructs the login orchestrator.
func NewLoginService(
	users port.UserRepository,
	auth port.AuthRepository,
	otc *OTCService,
	tokens *security.TokenCodec,
	hasher port.CredentialHasher,
	lockouts *LockoutService,
	events port.EventPublisher,
	cfg LoginConfig,
	logger *zap.Logger,
) *LoginService {
	return &LoginService{
		users:    users,
		auth:     auth,
		otc:      otc,
		tokens:   tokens,
		hasher:   hasher,
		lockouts: lockouts,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	s.now = now
	return s
}

// Login checks the password. On success the flow bifurcates: first-time
// identities get a setup-required signal, everyone else gets a second-factor
// code. Legacy plaintext passwords are migrated in place on success.
func (s *LoginService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	record, err := s.auth.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load auth record: %w", err)
	}
	if record.IsDisabled {
		return nil, ErrAccountLocked
	}

	match, migrate, err := s.checkPassword(record, password)
	if err != nil {
		return nil, err
	}

	if !match {
		return nil, s.recordFailedLogin(ctx, user.ID)
	}

	if migrate {
		s.migratePassword(ctx, user.ID, password)
	}

	if user.IsFirstLogin {
		return &LoginResult{Outcome: LoginSetupRequired, UserID: user.ID}, nil
	}

	if _, err := s.otc.Issue(ctx, user, "login"); err != nil {
		if errors.Is(err, ErrOTCQuotaExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("issue login code: %w", err)
	}

	return &LoginResult{Outcome: LoginOTPRequired, UserID: user.ID}, nil
}

// CompleteLogin verifies the second-factor code and mints the session.
// Success clears the failed-attempt counter: the full factor pair re-proves
// the identity.
func (s *LoginService) CompleteLogin(ctx context.Context, email, code string) (*Session, int, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrInvalidCredentials
		}
		return nil, 0, fmt.Errorf("lookup user: %w", err)
	}

	record, err := s.auth.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("load auth record: %w", err)
	}
	if record.IsDisabled {
		return nil, 0, ErrAccountLocked
	}

	attempts, err := s.otc.Verify(ctx, user.ID, code, s.cfg.CodeAttemptCap)
	if err != nil {
		return nil, attempts, err
	}

	token, expiresAt, err := s.tokens.MintSession(user.ID, user.Role)
	if err != nil {
		return nil, attempts, fmt.Errorf("mint session: %w", err)
	}

	if err := s.auth.ResetFailedAttempts(ctx, user.ID); err != nil {
		s.logger.Warn("reset failed attempts", zap.Error(err))
	}

	return &Session{Token: token, ExpiresAt: expiresAt, Role: user.Role}, attempts, nil
}

func (s *LoginService) checkPassword(record *domain.AuthRecord, password string) (match, migrate bool, err error) {
	if record.PasswordAlgo == domain.CredentialAlgoPlaintext {
		match = len(record.PasswordHash) == len(password) &&
			subtle.ConstantTimeCompare([]byte(record.PasswordHash), []byte(password)) == 1
		return match, match, nil
	}

	match, err = s.hasher.Verify(password, record.PasswordHash)
	if err != nil {
		return false, false, fmt.Errorf("verify password: %w", err)
	}
	return match, false, nil
}

// migratePassword replaces verified legacy plaintext with a hash. Failures
// are logged; the login itself already succeeded.
func (s *LoginService) migratePassword(ctx context.Context, userID, password string) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("hash legacy password", zap.Error(err))
		return
	}
	if err := s.auth.UpdatePassword(ctx, userID, hashed, domain.CredentialAlgoArgon2id, s.now().UTC()); err != nil {
		s.logger.Warn("migrate legacy password", zap.Error(err))
	}
}

func (s *LoginService) recordFailedLogin(ctx context.Context, userID string) error {
	attempts, err := s.auth.IncrementFailedAttempts(ctx, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("increment failed attempts: %w", err)
	}
	if attempts < s.cfg.MaxFailedAttempts {
		return ErrInvalidCredentials
	}

	if err := s.auth.SetDisabled(ctx, userID, true); err != nil {
		return fmt.Errorf("disable account: %w", err)
	}

	if err := s.lockouts.OpenIncidentIfAbsent(ctx, userID, domain.IncidentLoginLockout); err != nil {
		s.logger.Warn("open login lockout incident", zap.Error(err))
	}

	if err := s.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
		EventID:  uuid.NewString(),
		UserID:   userID,
		Surface:  domain.IncidentLoginLockout,
		LockedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish account locked event", zap.Error(err))
	}

	return ErrAccountLocked
}
