package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/transport/http/handlers"
)

func TestRecoveryStart_GenericResponse(t *testing.T) {
	fx := newAPIFixture(t)

	known := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail))
	unknown := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		`{"identifier":"stranger@example.com"}`)

	for name, w := range map[string]int{"known": known.Code, "unknown": unknown.Code} {
		if w != http.StatusAccepted {
			t.Fatalf("%s identifier: expected 202, got %d", name, w)
		}
	}

	// Both bodies carry the same outcome so the response does not reveal
	// whether the account exists.
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("responses must be identical, got %q vs %q", known.Body.String(), unknown.Body.String())
	}
}

func TestRecoveryQuestion_WithoutCookie(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodGet, "/api/v1/recovery/question", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeInvalidStage {
		t.Fatalf("expected INVALID_STAGE, got %v", got)
	}
}

func TestRecoveryVerifyCode_SetsStageCookie(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail)); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/verify-code",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	cookie := findCookie(w, "wf_recovery")
	if cookie == nil {
		t.Fatal("expected wf_recovery cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("recovery cookie must be HttpOnly")
	}
	if cookie.MaxAge <= 0 || cookie.MaxAge > 600 {
		t.Fatalf("expected a bounded recovery cookie lifetime, got %d", cookie.MaxAge)
	}
}

func TestRecoveryReset_RejectedAtFirstStage(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail)); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}
	verified := fx.do(t, http.MethodPost, "/api/v1/recovery/verify-code",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))
	stage1 := findCookie(verified, "wf_recovery")
	if stage1 == nil {
		t.Fatal("expected wf_recovery cookie")
	}

	// The code-verified token alone must not reach the reset operation.
	w := fx.do(t, http.MethodPost, "/api/v1/recovery/reset",
		`{"new_password":"Brand-new-pass-42"}`, stage1)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeInvalidStage {
		t.Fatalf("expected INVALID_STAGE, got %v", got)
	}
}

func TestRecoveryFlow_EndToEnd(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail)); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}

	verified := fx.do(t, http.MethodPost, "/api/v1/recovery/verify-code",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))
	if verified.Code != http.StatusOK {
		t.Fatalf("verify-code: expected 200, got %d: %s", verified.Code, verified.Body.String())
	}
	stage1 := findCookie(verified, "wf_recovery")

	question := fx.do(t, http.MethodGet, "/api/v1/recovery/question", "", stage1)
	if question.Code != http.StatusOK {
		t.Fatalf("question: expected 200, got %d: %s", question.Code, question.Body.String())
	}
	challenge := decodeBody(t, question)
	if challenge["question_id"] != "q1" {
		t.Fatalf("expected q1, got %v", challenge["question_id"])
	}

	answered := fx.do(t, http.MethodPost, "/api/v1/recovery/answer",
		`{"question_id":"q1","answer":"  rex "}`, stage1)
	if answered.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d: %s", answered.Code, answered.Body.String())
	}
	stage2 := findCookie(answered, "wf_recovery")
	if stage2 == nil {
		t.Fatal("expected refreshed wf_recovery cookie")
	}
	if stage2.Value == stage1.Value {
		t.Fatal("answer must upgrade the stage token")
	}

	reset := fx.do(t, http.MethodPost, "/api/v1/recovery/reset",
		`{"new_password":"Brand-new-pass-42"}`, stage2)
	if reset.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", reset.Code, reset.Body.String())
	}
	if got := decodeBody(t, reset)["outcome"]; got != handlers.OutcomeOK {
		t.Fatalf("expected OK, got %v", got)
	}

	cleared := findCookie(reset, "wf_recovery")
	if cleared == nil || cleared.Value != "" {
		t.Fatal("reset must clear the recovery cookie")
	}

	// The stored credential was replaced and the failure state cleared.
	record := fx.auth.records["u1"]
	if record.PasswordAlgo != domain.CredentialAlgoArgon2id {
		t.Fatalf("expected argon2id, got %q", record.PasswordAlgo)
	}
	if record.IsDisabled || record.FailedAttempts != 0 || record.QuestionAttempts != 0 {
		t.Fatal("reset must clear the failure state")
	}
}

func TestRecoveryAnswer_WrongAnswer(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail)); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}
	verified := fx.do(t, http.MethodPost, "/api/v1/recovery/verify-code",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))
	stage1 := findCookie(verified, "wf_recovery")

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/answer",
		`{"question_id":"q1","answer":"wrong"}`, stage1)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["outcome"] != handlers.OutcomeWrongAnswer {
		t.Fatalf("expected WRONG_ANSWER, got %v", body["outcome"])
	}
	if body["attempts_used"] != float64(1) {
		t.Fatalf("expected attempts_used 1, got %v", body["attempts_used"])
	}
}

func TestRecoveryAnswer_ThirdFailureLocksAndClearsCookies(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/recovery/start",
		fmt.Sprintf(`{"identifier":%q}`, testEmail)); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}
	verified := fx.do(t, http.MethodPost, "/api/v1/recovery/verify-code",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))
	stage1 := findCookie(verified, "wf_recovery")

	for i := 0; i < 2; i++ {
		if w := fx.do(t, http.MethodPost, "/api/v1/recovery/answer",
			`{"question_id":"q1","answer":"wrong"}`, stage1); w.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/answer",
		`{"question_id":"q1","answer":"wrong"}`, stage1)

	if w.Code != http.StatusLocked {
		t.Fatalf("expected 423 on 3rd failure, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeAccountLocked {
		t.Fatalf("expected ACCOUNT_LOCKED, got %v", got)
	}
	if !fx.auth.records["u1"].IsDisabled {
		t.Fatal("3rd failure must disable the account")
	}

	// The forced logout removes both the recovery stage and any session.
	recovery := findCookie(w, "wf_recovery")
	if recovery == nil || recovery.Value != "" {
		t.Fatal("expected cleared wf_recovery cookie")
	}
	session := findCookie(w, "wf_session")
	if session == nil || session.Value != "" {
		t.Fatal("expected cleared wf_session cookie")
	}
}
