package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/workforce-iam/internal/usecase"
)

// RecoveryHandler exposes the staged account-recovery endpoints. The stage
// token travels in an HttpOnly cookie, never in response bodies.
type RecoveryHandler struct {
	recovery      *usecase.RecoveryService
	secureCookies bool
}

// NewRecoveryHandler constructs RecoveryHandler.
func NewRecoveryHandler(recovery *usecase.RecoveryService, secureCookies bool) *RecoveryHandler {
	return &RecoveryHandler{
		recovery:      recovery,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes binds recovery routes, applying optional middleware ahead
// of the entry point.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, startMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, startMiddlewares...)
	chain = append(chain, h.start)
	r.POST("/start", chain...)

	r.POST("/verify-code", h.verifyCode)
	r.GET("/question", h.question)
	r.POST("/answer", h.answer)
	r.POST("/reset", h.reset)
}

func (h *RecoveryHandler) start(c *gin.Context) {
	var req RecoveryStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "identifier is required"))
		return
	}

	err := h.recovery.Start(c.Request.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		if errors.Is(err, usecase.ErrRecoveryRateLimited) {
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, OutcomeRateLimited, "too many recovery requests"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, OutcomeInternal, "recovery unavailable"))
		return
	}

	// The response is identical whether the identifier is registered or not.
	c.JSON(http.StatusAccepted, RecoveryStartResponse{
		Outcome: OutcomeOTPSent,
		Message: "if the account exists, a code has been sent",
	})
}

func (h *RecoveryHandler) verifyCode(c *gin.Context) {
	var req RecoveryVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "identifier and code are required"))
		return
	}

	token, attempts, err := h.recovery.VerifyCode(c.Request.Context(), strings.TrimSpace(req.Identifier), strings.TrimSpace(req.Code))
	if err != nil {
		h.respondCodeError(c, err, attempts)
		return
	}

	setStageCookie(c, RecoveryCookieName, token.Token, token.ExpiresAt, h.secureCookies)

	c.JSON(http.StatusOK, RecoveryStageResponse{
		Outcome:   OutcomeOK,
		ExpiresAt: token.ExpiresAt,
	})
}

func (h *RecoveryHandler) question(c *gin.Context) {
	challenge, err := h.recovery.Challenge(c.Request.Context(), cookieToken(c, RecoveryCookieName))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryStageInvalid, Status: http.StatusUnauthorized, Outcome: OutcomeInvalidStage, Message: "recovery token invalid for this stage"},
			{Err: usecase.ErrNoQuestions, Status: http.StatusConflict, Outcome: OutcomeNoQuestions, Message: "no security questions registered"},
			{Err: usecase.ErrQuestionLocked, Status: http.StatusLocked, Outcome: OutcomeAccountLocked, Message: "question attempts exhausted"},
		})
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		QuestionID: challenge.QuestionID,
		Question:   challenge.Question,
	})
}

func (h *RecoveryHandler) answer(c *gin.Context) {
	var req RecoveryAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "question_id and answer are required"))
		return
	}

	upgraded, result, err := h.recovery.VerifyAnswer(c.Request.Context(), cookieToken(c, RecoveryCookieName), req.QuestionID, req.Answer)
	if err != nil {
		h.respondAnswerError(c, err, result)
		return
	}

	setStageCookie(c, RecoveryCookieName, upgraded.Token, upgraded.ExpiresAt, h.secureCookies)

	c.JSON(http.StatusOK, RecoveryStageResponse{
		Outcome:   OutcomeOK,
		ExpiresAt: upgraded.ExpiresAt,
	})
}

func (h *RecoveryHandler) reset(c *gin.Context) {
	var req RecoveryResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeInvalidRequest, "new_password is required"))
		return
	}

	err := h.recovery.ResetPassword(c.Request.Context(), cookieToken(c, RecoveryCookieName), req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryStageInvalid, Status: http.StatusUnauthorized, Outcome: OutcomeInvalidStage, Message: "recovery token invalid for this stage"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusUnprocessableEntity, Outcome: OutcomeWeakPassword, Message: "password does not meet policy"},
		})
		return
	}

	clearStageCookie(c, RecoveryCookieName, h.secureCookies)

	c.JSON(http.StatusOK, MessageResponse{
		Outcome: OutcomeOK,
		Message: "password updated",
	})
}

func (h *RecoveryHandler) respondCodeError(c *gin.Context, err error, attempts int) {
	switch {
	case errors.Is(err, usecase.ErrOTCMismatch):
		resp := NewErrorResponse(c, OutcomeInvalidCode, "code does not match")
		resp.AttemptsUsed = attempts
		c.JSON(http.StatusUnauthorized, resp)
	case errors.Is(err, usecase.ErrOTCExpired):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, OutcomeOTPExpired, "code expired, request a new one"))
	case errors.Is(err, usecase.ErrOTCMaxAttempts):
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, OutcomeOTPMaxAttempts, "code attempts exhausted"))
	case errors.Is(err, usecase.ErrOTCAlreadyUsed):
		c.JSON(http.StatusConflict, NewErrorResponse(c, OutcomeOTPAlreadyUsed, "code already used"))
	case errors.Is(err, usecase.ErrOTCNotFound):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, OutcomeNoCode, "no active code, start over"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, OutcomeInternal, "recovery failed"))
	}
}

func (h *RecoveryHandler) respondAnswerError(c *gin.Context, err error, result *usecase.AnswerResult) {
	switch {
	case errors.Is(err, usecase.ErrQuestionLocked):
		// The account was just disabled: drop both the recovery stage and
		// any live session.
		clearStageCookie(c, RecoveryCookieName, h.secureCookies)
		clearSessionCookie(c, h.secureCookies)
		c.JSON(http.StatusLocked, NewErrorResponse(c, OutcomeAccountLocked, "question attempts exhausted"))
	case errors.Is(err, usecase.ErrAnswerMismatch):
		resp := NewErrorResponse(c, OutcomeWrongAnswer, "answer does not match")
		if result != nil {
			resp.AttemptsUsed = result.Attempts
		}
		c.JSON(http.StatusUnauthorized, resp)
	case errors.Is(err, usecase.ErrRecoveryStageInvalid):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, OutcomeInvalidStage, "recovery token invalid for this stage"))
	case errors.Is(err, usecase.ErrNoQuestions):
		c.JSON(http.StatusConflict, NewErrorResponse(c, OutcomeNoQuestions, "no security questions registered"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, OutcomeInternal, "recovery failed"))
	}
}
