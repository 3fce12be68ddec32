package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/infra/security"
	"github.com/shiftwise/workforce-iam/internal/repository"
	"github.com/shiftwise/workforce-iam/internal/transport/http/handlers"
	"github.com/shiftwise/workforce-iam/internal/usecase"
)

type memUserRepo struct {
	users map[string]*domain.Identity
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memAuthRepo struct {
	records map[string]*domain.AuthRecord
}

func (r *memAuthRepo) GetByUserID(_ context.Context, userID string) (*domain.AuthRecord, error) {
	if rec, ok := r.records[userID]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memAuthRepo) UpdatePassword(_ context.Context, userID, hash, algo string, changedAt time.Time) error {
	rec, ok := r.records[userID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.PasswordHash = hash
	rec.PasswordAlgo = algo
	rec.LastPasswordChange = changedAt
	return nil
}

func (r *memAuthRepo) IncrementFailedAttempts(_ context.Context, userID string, at time.Time) (int, error) {
	rec, ok := r.records[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	rec.FailedAttempts++
	rec.LastFailedAttempt = &at
	return rec.FailedAttempts, nil
}

func (r *memAuthRepo) IncrementQuestionAttempts(_ context.Context, userID string, at time.Time) (int, error) {
	rec, ok := r.records[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	rec.QuestionAttempts++
	rec.LastFailedAttempt = &at
	return rec.QuestionAttempts, nil
}

func (r *memAuthRepo) ResetFailedAttempts(_ context.Context, userID string) error {
	if rec, ok := r.records[userID]; ok {
		rec.FailedAttempts = 0
	}
	return nil
}

func (r *memAuthRepo) ResetQuestionAttempts(_ context.Context, userID string) error {
	if rec, ok := r.records[userID]; ok {
		rec.QuestionAttempts = 0
	}
	return nil
}

func (r *memAuthRepo) SetDisabled(_ context.Context, userID string, disabled bool) error {
	if rec, ok := r.records[userID]; ok {
		rec.IsDisabled = disabled
	}
	return nil
}

func (r *memAuthRepo) ClearFailureState(_ context.Context, userID string) error {
	if rec, ok := r.records[userID]; ok {
		rec.FailedAttempts = 0
		rec.QuestionAttempts = 0
		rec.IsDisabled = false
	}
	return nil
}

type memOTCRepo struct {
	codes map[string]*domain.OneTimeCode
}

func (r *memOTCRepo) Create(_ context.Context, code domain.OneTimeCode) error {
	copied := code
	r.codes[code.ID] = &copied
	return nil
}

func (r *memOTCRepo) GetLatestByUserID(_ context.Context, userID string) (*domain.OneTimeCode, error) {
	var all []*domain.OneTimeCode
	for _, c := range r.codes {
		if c.UserID == userID {
			all = append(all, c)
		}
	}
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	copied := *all[0]
	return &copied, nil
}

func (r *memOTCRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	c, ok := r.codes[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r *memOTCRepo) MarkVerified(_ context.Context, id string) error {
	c, ok := r.codes[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.IsVerified {
		return repository.ErrConflict
	}
	c.IsVerified = true
	return nil
}

func (r *memOTCRepo) CountIssuedSince(_ context.Context, userID string, since time.Time) (int, error) {
	count := 0
	for _, c := range r.codes {
		if c.UserID == userID && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memOTCRepo) CountExhaustedSince(_ context.Context, userID string, since time.Time, attemptCap int) (int, error) {
	count := 0
	for _, c := range r.codes {
		if c.UserID == userID && !c.CreatedAt.Before(since) && !c.IsVerified && c.Attempts >= attemptCap {
			count++
		}
	}
	return count, nil
}

type memAnswerRepo struct {
	answers map[string]*domain.SecurityAnswer
}

func (r *memAnswerRepo) ListByUserID(_ context.Context, userID string) ([]domain.SecurityAnswer, error) {
	var out []domain.SecurityAnswer
	for _, a := range r.answers {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAnswerRepo) GetByQuestionID(_ context.Context, userID, questionID string) (*domain.SecurityAnswer, error) {
	for _, a := range r.answers {
		if a.UserID == userID && a.QuestionID == questionID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAnswerRepo) UpdateAnswerHash(_ context.Context, id, answerHash, answerAlgo string, updatedAt time.Time) error {
	a, ok := r.answers[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.AnswerHash = answerHash
	a.AnswerAlgo = answerAlgo
	a.UpdatedAt = updatedAt
	return nil
}

type memIncidentRepo struct {
	open map[string]domain.RecoveryIncident
}

func (r *memIncidentRepo) GetOpenByDedupeKey(_ context.Context, dedupeKey string) (*domain.RecoveryIncident, error) {
	if inc, ok := r.open[dedupeKey]; ok {
		return &inc, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memIncidentRepo) CreateIfAbsent(_ context.Context, incident domain.RecoveryIncident) (bool, error) {
	if _, ok := r.open[incident.DedupeKey]; ok {
		return false, nil
	}
	r.open[incident.DedupeKey] = incident
	return true, nil
}

type stubNotifier struct {
	lastCode string
}

func (n *stubNotifier) SendCode(_ context.Context, _, code string) error {
	n.lastCode = code
	return nil
}

type stubPublisher struct{}

func (stubPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error   { return nil }
func (stubPublisher) PublishIncidentOpened(context.Context, domain.IncidentOpenedEvent) error { return nil }
func (stubPublisher) PublishPasswordReset(context.Context, domain.PasswordResetEvent) error   { return nil }
func (stubPublisher) PublishCodeIssued(context.Context, domain.CodeIssuedEvent) error         { return nil }

type memRateLimitStore struct {
	attempts map[string][]time.Time
}

func (s *memRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	return nil
}

func (s *memRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	return len(s.attempts[identifier]), nil
}

func (s *memRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *memRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if len(s.attempts[identifier]) == 0 {
		return time.Time{}, false, nil
	}
	return s.attempts[identifier][0], true, nil
}

// apiFixture wires real services over in-memory stores behind a Gin router,
// so the tests drive the full HTTP surface.
type apiFixture struct {
	router   *gin.Engine
	auth     *memAuthRepo
	answers  *memAnswerRepo
	notifier *stubNotifier
}

const (
	testEmail    = "u1@example.com"
	testPassword = "correct-horse-7"
)

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	hashed, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &memUserRepo{users: map[string]*domain.Identity{
		"u1": {ID: "u1", Email: testEmail, Role: domain.RoleEmployee},
	}}
	auth := &memAuthRepo{records: map[string]*domain.AuthRecord{
		"u1": {UserID: "u1", PasswordHash: hashed, PasswordAlgo: domain.CredentialAlgoArgon2id},
	}}
	answers := &memAnswerRepo{answers: map[string]*domain.SecurityAnswer{
		"a1": {ID: "a1", UserID: "u1", QuestionID: "q1", Question: "First pet's name?", AnswerHash: "Rex", AnswerAlgo: domain.CredentialAlgoPlaintext},
	}}

	codes := &memOTCRepo{codes: make(map[string]*domain.OneTimeCode)}
	incidents := &memIncidentRepo{open: make(map[string]domain.RecoveryIncident)}
	rates := &memRateLimitStore{attempts: make(map[string][]time.Time)}
	notifier := &stubNotifier{}
	publisher := stubPublisher{}
	log := zap.NewNop()

	codec, err := security.NewTokenCodec("api-session-secret", "api-recovery-secret", 168*time.Hour, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	lockouts := usecase.NewLockoutService(incidents, publisher, log)
	otc := usecase.NewOTCService(codes, auth, notifier, lockouts, publisher, usecase.OTCConfig{
		CodeLength:                 6,
		Expiry:                     90 * time.Second,
		DailyQuota:                 5,
		ExhaustedIncidentThreshold: 5,
	}, log)
	questions := usecase.NewQuestionService(auth, answers, hasher, lockouts, publisher, 3, log)
	login := usecase.NewLoginService(users, auth, otc, codec, hasher, lockouts, publisher, usecase.LoginConfig{
		MaxFailedAttempts: 3,
		CodeAttemptCap:    3,
	}, log)
	recovery := usecase.NewRecoveryService(users, auth, otc, questions, codec, hasher,
		security.DefaultPasswordValidator(), rates, publisher, usecase.RecoveryConfig{
			CodeAttemptCap:  5,
			RateWindow:      time.Hour,
			RateMaxRequests: 10,
		}, log)

	router := gin.New()
	api := router.Group("/api/v1")
	handlers.NewAuthHandler(login, nil, false).RegisterRoutes(api.Group("/auth"))
	handlers.NewRecoveryHandler(recovery, false).RegisterRoutes(api.Group("/recovery"))

	return &apiFixture{
		router:   router,
		auth:     auth,
		answers:  answers,
		notifier: notifier,
	}
}

func (fx *apiFixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return payload
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
