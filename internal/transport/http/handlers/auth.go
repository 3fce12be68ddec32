package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/workforce-iam/internal/infra/telemetry"
	"github.com/shiftwise/workforce-iam/internal/transport/http/middleware"
	"github.com/shiftwise/workforce-iam/internal/usecase"
)

// AuthHandler exposes the two-step login endpoints.
type AuthHandler struct {
	login         *usecase.LoginService
	metrics       *telemetry.Metrics
	secureCookies bool
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, metrics *telemetry.Metrics, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		login:         login,
		metrics:       metrics,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes binds login routes, applying optional middleware ahead of
// the credential check.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.loginStart)
	r.POST("/login", chain...)

	r.POST("/login/complete", h.loginComplete)
	r.POST("/logout", h.logout)
}

// SessionInfo echoes the authenticated caller's identity. It is registered
// behind the session middleware.
func (h *AuthHandler) SessionInfo(c *gin.Context) {
	userID, _ := c.Get(middleware.UserIDKey)
	role, _ := c.Get(middleware.RoleKey)

	userIDStr, _ := userID.(string)
	roleStr, _ := role.(string)

	c.JSON(http.StatusOK, SessionInfoResponse{
		UserID: userIDStr,
		Role:   roleStr,
	})
}

func (h *AuthHandler) loginStart(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "identifier and password are required"))
		return
	}

	result, err := h.login.Login(c.Request.Context(), strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	switch result.Outcome {
	case usecase.LoginSetupRequired:
		h.recordOutcome(OutcomeSetupRequired)
		c.JSON(http.StatusOK, LoginResponse{
			Outcome: OutcomeSetupRequired,
			Message: "initial credential setup required",
		})
	default:
		h.recordOutcome(OutcomeOTPRequired)
		c.JSON(http.StatusOK, LoginResponse{
			Outcome: OutcomeOTPRequired,
			Message: "a one-time code has been sent",
		})
	}
}

func (h *AuthHandler) loginComplete(c *gin.Context) {
	var req LoginCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "identifier and code are required"))
		return
	}

	session, attempts, err := h.login.CompleteLogin(c.Request.Context(), strings.TrimSpace(req.Identifier), strings.TrimSpace(req.Code))
	if err != nil {
		h.respondCompleteError(c, err, attempts)
		return
	}

	h.recordOutcome(OutcomeOK)
	setSessionCookie(c, session.Token, session.ExpiresAt, h.secureCookies)

	c.JSON(http.StatusOK, SessionResponse{
		Outcome:   OutcomeOK,
		Role:      string(session.Role),
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	clearSessionCookie(c, h.secureCookies)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrAccountLocked):
		h.recordOutcome(OutcomeAccountLocked)
		c.JSON(http.StatusLocked, NewErrorResponse(c, OutcomeAccountLocked, "account is locked"))
	case errors.Is(err, usecase.ErrInvalidCredentials):
		h.recordOutcome(OutcomeInvalidCredentials)
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, OutcomeInvalidCredentials, "invalid credentials"))
	case errors.Is(err, usecase.ErrOTCQuotaExceeded):
		h.recordOutcome(OutcomeRateLimited)
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, OutcomeRateLimited, "daily code quota exhausted"))
	default:
		h.recordOutcome(OutcomeInternal)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, OutcomeInternal, "authentication failed"))
	}
}

func (h *AuthHandler) respondCompleteError(c *gin.Context, err error, attempts int) {
	switch {
	case errors.Is(err, usecase.ErrOTCMismatch):
		h.recordOutcome(OutcomeInvalidCode)
		resp := NewErrorResponse(c, OutcomeInvalidCode, "code does not match")
		resp.AttemptsUsed = attempts
		c.JSON(http.StatusUnauthorized, resp)
	case errors.Is(err, usecase.ErrOTCExpired):
		h.recordOutcome(OutcomeOTPExpired)
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, OutcomeOTPExpired, "code expired, request a new one"))
	case errors.Is(err, usecase.ErrOTCMaxAttempts):
		h.recordOutcome(OutcomeOTPMaxAttempts)
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, OutcomeOTPMaxAttempts, "code attempts exhausted"))
	case errors.Is(err, usecase.ErrOTCAlreadyUsed):
		h.recordOutcome(OutcomeOTPAlreadyUsed)
		c.JSON(http.StatusConflict, NewErrorResponse(c, OutcomeOTPAlreadyUsed, "code already used"))
	case errors.Is(err, usecase.ErrOTCNotFound):
		h.recordOutcome(OutcomeNoCode)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeNoCode, "no active code, start over"))
	case errors.Is(err, usecase.ErrAccountLocked):
		h.recordOutcome(OutcomeAccountLocked)
		c.JSON(http.StatusLocked, NewErrorResponse(c, OutcomeAccountLocked, "account is locked"))
	case errors.Is(err, usecase.ErrInvalidCredentials):
		h.recordOutcome(OutcomeInvalidCredentials)
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, OutcomeInvalidCredentials, "invalid credentials"))
	default:
		h.recordOutcome(OutcomeInternal)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, OutcomeInternal, "authentication failed"))
	}
}

func (h *AuthHandler) recordOutcome(outcome string) {
	if h.metrics == nil || h.metrics.LoginOutcomes == nil {
		return
	}
	h.metrics.LoginOutcomes.WithLabelValues(outcome).Inc()
}
