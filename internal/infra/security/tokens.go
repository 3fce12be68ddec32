package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

const tokenIssuer = "workforce-iam"

// upgradeTTLFloor guards a stage upgrade against expiring mid-request when
// the source token has only a sliver of lifetime left.
const upgradeTTLFloor = 30 * time.Second

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, and tokens
	// signed under the wrong key-space.
	ErrTokenInvalid = errors.New("token: invalid")

	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token: expired")

	// ErrStageMismatch indicates a recovery token presented at the wrong
	// protocol stage.
	ErrStageMismatch = errors.New("token: recovery stage mismatch")
)

// SessionClaims are carried by long-lived session tokens.
type SessionClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RecoveryClaims are carried by short-lived recovery tokens. Stage gates
// which recovery operation the bearer may perform next.
type RecoveryClaims struct {
	UserID string `json:"uid"`
	Stage  string `json:"stage"`
	Nonce  string `json:"nonce"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies HMAC-signed tokens in two independent
// key-spaces. A session token never verifies under the recovery secret and
// vice versa, so a leaked recovery token cannot impersonate a session.
type TokenCodec struct {
	sessionSecret  []byte
	recoverySecret []byte
	sessionTTL     time.Duration
	recoveryTTL    time.Duration

	now func() time.Time
}

// NewTokenCodec constructs a codec. Both secrets are required and must
// differ; startup fails closed otherwise.
func NewTokenCodec(sessionSecret, recoverySecret string, sessionTTL, recoveryTTL time.Duration) (*TokenCodec, error) {
	if strings.TrimSpace(sessionSecret) == "" {
		return nil, fmt.Errorf("token: session secret is required")
	}
	if strings.TrimSpace(recoverySecret) == "" {
		return nil, fmt.Errorf("token: recovery secret is required")
	}
	if sessionSecret == recoverySecret {
		return nil, fmt.Errorf("token: session and recovery secrets must differ")
	}
	if sessionTTL <= 0 || recoveryTTL <= 0 {
		return nil, fmt.Errorf("token: ttls must be positive")
	}

	return &TokenCodec{
		sessionSecret:  []byte(sessionSecret),
		recoverySecret: []byte(recoverySecret),
		sessionTTL:     sessionTTL,
		recoveryTTL:    recoveryTTL,
		now:            time.Now,
	}, nil
}

// WithClock overrides the codec clock for tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// MintSession issues a session token for the given identity.
func (c *TokenCodec) MintSession(userID string, role domain.Role) (string, time.Time, error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.sessionTTL)

	claims := &SessionClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.sessionSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign session: %w", err)
	}

	return signed, expiresAt, nil
}

// VerifySession validates a session token and returns its claims.
func (c *TokenCodec) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := c.parse(token, claims, c.sessionSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// MintRecovery issues a recovery token at the given stage with a fresh TTL.
func (c *TokenCodec) MintRecovery(userID string, stage domain.RecoveryStage) (string, time.Time, error) {
	now := c.now().UTC()
	return c.mintRecoveryAt(userID, stage, now, now.Add(c.recoveryTTL))
}

// VerifyRecovery validates a recovery token and requires the expected stage.
// A token at a different stage is rejected, in both directions: a stage may
// be neither skipped nor replayed.
func (c *TokenCodec) VerifyRecovery(token string, want domain.RecoveryStage) (*RecoveryClaims, error) {
	claims := &RecoveryClaims{}
	if err := c.parse(token, claims, c.recoverySecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	stage, err := domain.ParseRecoveryStage(claims.Stage)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, claims.Stage)
	}
	if stage != want {
		return nil, ErrStageMismatch
	}

	return claims, nil
}

// UpgradeRecovery exchanges a token at the from stage for one at the to
// stage. The upgraded token keeps the remaining lifetime, raised to a short
// floor so the exchange itself cannot produce an already-dead token.
func (c *TokenCodec) UpgradeRecovery(token string, from, to domain.RecoveryStage) (string, time.Time, error) {
	claims, err := c.VerifyRecovery(token, from)
	if err != nil {
		return "", time.Time{}, err
	}

	now := c.now().UTC()
	expiresAt := now.Add(upgradeTTLFloor)
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(now); remaining > upgradeTTLFloor {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	return c.mintRecoveryAt(claims.UserID, to, now, expiresAt)
}

func (c *TokenCodec) mintRecoveryAt(userID string, stage domain.RecoveryStage, now, expiresAt time.Time) (string, time.Time, error) {
	nonce, err := GenerateSecureToken(16)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := &RecoveryClaims{
		UserID: userID,
		Stage:  string(stage),
		Nonce:  nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.recoverySecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign recovery: %w", err)
	}

	return signed, expiresAt, nil
}

func (c *TokenCodec) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
