package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

type memUserRepo struct {
	users map[string]*domain.Identity
}

func newMemUserRepo(users ...*domain.Identity) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*domain.Identity)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
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

func newMemAuthRepo(records ...*domain.AuthRecord) *memAuthRepo {
	repo := &memAuthRepo{records: make(map[string]*domain.AuthRecord)}
	for _, rec := range records {
		repo.records[rec.UserID] = rec
	}
	return repo
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

func newMemOTCRepo() *memOTCRepo {
	return &memOTCRepo{codes: make(map[string]*domain.OneTimeCode)}
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

func newMemAnswerRepo(answers ...*domain.SecurityAnswer) *memAnswerRepo {
	repo := &memAnswerRepo{answers: make(map[string]*domain.SecurityAnswer)}
	for _, a := range answers {
		repo.answers[a.ID] = a
	}
	return repo
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
	// creations counts rows actually inserted, to assert idempotency.
	creations int
}

func newMemIncidentRepo() *memIncidentRepo {
	return &memIncidentRepo{open: make(map[string]domain.RecoveryIncident)}
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
	r.creations++
	return true, nil
}

type stubNotifier struct {
	sent     []string
	lastCode string
	err      error
}

func (n *stubNotifier) SendCode(_ context.Context, address, code string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, address)
	n.lastCode = code
	return nil
}

type stubPublisher struct {
	locked    []domain.AccountLockedEvent
	incidents []domain.IncidentOpenedEvent
	resets    []domain.PasswordResetEvent
	issued    []domain.CodeIssuedEvent
}

func (p *stubPublisher) PublishAccountLocked(_ context.Context, e domain.AccountLockedEvent) error {
	p.locked = append(p.locked, e)
	return nil
}

func (p *stubPublisher) PublishIncidentOpened(_ context.Context, e domain.IncidentOpenedEvent) error {
	p.incidents = append(p.incidents, e)
	return nil
}

func (p *stubPublisher) PublishPasswordReset(_ context.Context, e domain.PasswordResetEvent) error {
	p.resets = append(p.resets, e)
	return nil
}

func (p *stubPublisher) PublishCodeIssued(_ context.Context, e domain.CodeIssuedEvent) error {
	p.issued = append(p.issued, e)
	return nil
}

type memRateLimitStore struct {
	attempts map[string][]time.Time
}

func newMemRateLimitStore() *memRateLimitStore {
	return &memRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *memRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	cutoff := reference.Add(-window)
	var kept []time.Time
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *memRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	cutoff := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *memRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *memRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

var (
	_ port.UserRepository     = (*memUserRepo)(nil)
	_ port.AuthRepository     = (*memAuthRepo)(nil)
	_ port.OTCRepository      = (*memOTCRepo)(nil)
	_ port.AnswerRepository   = (*memAnswerRepo)(nil)
	_ port.IncidentRepository = (*memIncidentRepo)(nil)
	_ port.CodeNotifier       = (*stubNotifier)(nil)
	_ port.EventPublisher     = (*stubPublisher)(nil)
	_ port.RateLimitStore     = (*memRateLimitStore)(nil)
)
