package domain

import "time"

// Role enumerates workforce roles carried inside session tokens.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Identity mirrors the persisted representation in the users table.
// It is owned by the credential store and read-only to this core.
type Identity struct {
	ID           string
	Email        string
	Phone        *string
	Role         Role
	IsFirstLogin bool
	RegisteredAt time.Time
}

// Algorithms stored alongside password and answer material.
const (
	CredentialAlgoArgon2id  = "argon2id"
	CredentialAlgoPlaintext = "plaintext"
)

// AuthRecord holds the mutable authentication state for one identity.
// PasswordHash may still contain legacy plaintext awaiting migration;
// PasswordAlgo distinguishes the two forms.
type AuthRecord struct {
	UserID             string
	PasswordHash       string
	PasswordAlgo       string
	FailedAttempts     int
	QuestionAttempts   int
	IsDisabled         bool
	LastFailedAttempt  *time.Time
	LastPasswordChange time.Time
}

// SecurityAnswer stores one knowledge-factor pair for an identity.
// AnswerHash may be legacy plaintext until migrated on first verified match.
type SecurityAnswer struct {
	ID         string
	UserID     string
	QuestionID string
	Question   string
	AnswerHash string
	AnswerAlgo string
	UpdatedAt  time.Time
}
