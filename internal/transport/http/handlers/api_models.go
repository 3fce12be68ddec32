package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/workforce-iam/internal/transport/http/middleware"
)

// Outcome codes returned in every authentication and recovery response.
// Clients branch on these rather than on HTTP status alone.
const (
	OutcomeOK                 = "OK"
	OutcomeOTPSent            = "OTP_SENT"
	OutcomeOTPRequired        = "OTP_REQUIRED"
	OutcomeSetupRequired      = "SETUP_REQUIRED"
	OutcomeInvalidRequest     = "INVALID_REQUEST"
	OutcomeInvalidCredentials = "INVALID_CREDENTIALS"
	OutcomeInvalidCode        = "INVALID_CODE"
	OutcomeOTPExpired         = "OTP_EXPIRED"
	OutcomeOTPMaxAttempts     = "OTP_MAX_ATTEMPTS"
	OutcomeOTPAlreadyUsed     = "OTP_ALREADY_USED"
	OutcomeNoCode             = "NO_CODE"
	OutcomeWrongAnswer        = "WRONG_ANSWER"
	OutcomeNoQuestions        = "NO_QUESTIONS"
	OutcomeAccountLocked      = "ACCOUNT_LOCKED"
	OutcomeInvalidStage       = "INVALID_STAGE"
	OutcomeWeakPassword       = "WEAK_PASSWORD"
	OutcomeRateLimited        = "RATE_LIMITED"
	OutcomeInternal           = "INTERNAL"
)

// ErrorResponse is the generic failure payload with trace ID for debugging.
type ErrorResponse struct {
	Outcome      string `json:"outcome"`
	Error        string `json:"error"`
	AttemptsUsed int    `json:"attempts_used,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, outcome, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Outcome: outcome,
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// LoginRequest defines the payload for the credential check.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse reports the next step after a successful credential check.
type LoginResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// LoginCompleteRequest carries the second-factor code.
type LoginCompleteRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// SessionResponse describes an established session.
type SessionResponse struct {
	Outcome   string    `json:"outcome"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfoResponse echoes the authenticated caller's identity.
type SessionInfoResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// RecoveryStartRequest opens a recovery flow for the given identifier.
type RecoveryStartRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// RecoveryStartResponse is intentionally identical for known and unknown
// identifiers.
type RecoveryStartResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// RecoveryVerifyRequest carries the recovery one-time code.
type RecoveryVerifyRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// RecoveryStageResponse reports a successful stage transition and the
// lifetime of the recovery cookie.
type RecoveryStageResponse struct {
	Outcome   string    `json:"outcome"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeResponse presents the security question to answer.
type ChallengeResponse struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
}

// RecoveryAnswerRequest carries the answer to the presented question.
type RecoveryAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// RecoveryResetRequest carries the replacement password.
type RecoveryResetRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency probe.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
