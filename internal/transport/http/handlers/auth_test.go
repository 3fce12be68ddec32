package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shiftwise/workforce-iam/internal/transport/http/handlers"
)

func TestLoginEndpoint_InvalidCredentials(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"identifier":"u1@example.com","password":"wrong"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", got)
	}
}

func TestLoginEndpoint_MalformedPayload(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login", `{"identifier":"u1@example.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", got)
	}
}

func TestLoginEndpoint_OTPRequired(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"identifier":%q,"password":%q}`, testEmail, testPassword))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeOTPRequired {
		t.Fatalf("expected OTP_REQUIRED, got %v", got)
	}
	if fx.notifier.lastCode == "" {
		t.Fatal("expected a code to be dispatched")
	}

	// The credential check alone never sets a session cookie.
	if findCookie(w, "wf_session") != nil {
		t.Fatal("no session cookie may be set before the second factor")
	}
}

func TestLoginComplete_SetsSessionCookie(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"identifier":%q,"password":%q}`, testEmail, testPassword)); w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login/complete",
		fmt.Sprintf(`{"identifier":%q,"code":%q}`, testEmail, fx.notifier.lastCode))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["outcome"] != handlers.OutcomeOK {
		t.Fatalf("expected OK, got %v", body["outcome"])
	}
	if body["role"] != "employee" {
		t.Fatalf("expected employee role, got %v", body["role"])
	}

	cookie := findCookie(w, "wf_session")
	if cookie == nil {
		t.Fatal("expected wf_session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if cookie.Value == "" {
		t.Fatal("session cookie must carry the token")
	}
}

func TestLoginComplete_WrongCode(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"identifier":%q,"password":%q}`, testEmail, testPassword)); w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login/complete",
		fmt.Sprintf(`{"identifier":%q,"code":"000000"}`, testEmail))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["outcome"] != handlers.OutcomeInvalidCode {
		t.Fatalf("expected INVALID_CODE, got %v", body["outcome"])
	}
	if body["attempts_used"] != float64(1) {
		t.Fatalf("expected attempts_used 1, got %v", body["attempts_used"])
	}
	if findCookie(w, "wf_session") != nil {
		t.Fatal("no session cookie may be set for a wrong code")
	}
}

func TestLoginEndpoint_LockedAccount(t *testing.T) {
	fx := newAPIFixture(t)

	for i := 0; i < 2; i++ {
		if w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
			fmt.Sprintf(`{"identifier":%q,"password":"wrong"}`, testEmail)); w.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w := fx.do(t, http.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"identifier":%q,"password":"wrong"}`, testEmail))

	if w.Code != http.StatusLocked {
		t.Fatalf("expected 423 on 3rd failure, got %d", w.Code)
	}
	if got := decodeBody(t, w)["outcome"]; got != handlers.OutcomeAccountLocked {
		t.Fatalf("expected ACCOUNT_LOCKED, got %v", got)
	}
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/auth/logout", "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	cookie := findCookie(w, "wf_session")
	if cookie == nil {
		t.Fatal("expected an expiring wf_session cookie")
	}
	if cookie.MaxAge >= 0 && cookie.Value != "" {
		t.Fatalf("expected cleared cookie, got value %q max-age %d", cookie.Value, cookie.MaxAge)
	}
}
