package domain

import (
	"fmt"
	"time"
)

// RecoveryStage marks progress through the staged recovery protocol.
type RecoveryStage string

const (
	StageOTPVerified      RecoveryStage = "otp_verified"
	StageQuestionVerified RecoveryStage = "question_verified"
)

// ParseRecoveryStage validates a stage value decoded from a recovery token.
// Unknown stages are rejected so a forged or stale stage never falls through.
func ParseRecoveryStage(raw string) (RecoveryStage, error) {
	switch RecoveryStage(raw) {
	case StageOTPVerified:
		return StageOTPVerified, nil
	case StageQuestionVerified:
		return StageQuestionVerified, nil
	default:
		return "", fmt.Errorf("unknown recovery stage %q", raw)
	}
}

// IncidentType enumerates the lockout surfaces that open incidents.
type IncidentType string

const (
	IncidentLoginLockout     IncidentType = "login_lockout"
	IncidentQuestionLockout  IncidentType = "question_lockout"
	IncidentOTCQuotaExceeded IncidentType = "otc_quota_exhausted"
)

// IncidentStatus tracks the lifecycle of a recovery incident.
type IncidentStatus string

const (
	IncidentOpen   IncidentStatus = "OPEN"
	IncidentClosed IncidentStatus = "CLOSED"
)

// RecoveryIncident records an account lockout requiring follow-up.
// DedupeKey is deterministic per (user, type) so repeated triggers
// never create a second OPEN incident.
type RecoveryIncident struct {
	ID        string
	UserID    string
	Type      IncidentType
	Status    IncidentStatus
	DedupeKey string
	CreatedAt time.Time
}

// IncidentDedupeKey derives the deterministic key for an incident.
func IncidentDedupeKey(userID string, incidentType IncidentType) string {
	return fmt.Sprintf("%s:%s", userID, incidentType)
}
