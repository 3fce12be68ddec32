package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
)

// LockoutService centralizes incident creation for the three failure
// surfaces: login lockout, question lockout, and OTC quota exhaustion.
// It is the only place incidents are created.
type LockoutService struct {
	incidents port.IncidentRepository
	events    port.EventPublisher
	logger    *zap.Logger

	now func() time.Time
}

// NewLockoutService constructs the lockout tracker.
func NewLockoutService(incidents port.IncidentRepository, events port.EventPublisher, logger *zap.Logger) *LockoutService {
	return &LockoutService{
		incidents: incidents,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the service clock for tests.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// OpenIncidentIfAbsent opens an incident unless an OPEN one with the same
// dedupe key already exists. Repeated or concurrent triggers are no-ops.
// Callers treat failures as best-effort: log and continue.
func (s *LockoutService) OpenIncidentIfAbsent(ctx context.Context, userID string, incidentType domain.IncidentType) error {
	key := domain.IncidentDedupeKey(userID, incidentType)

	if _, err := s.incidents.GetOpenByDedupeKey(ctx, key); err == nil {
		return nil
	}

	incident := domain.RecoveryIncident{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      incidentType,
		Status:    domain.IncidentOpen,
		DedupeKey: key,
		CreatedAt: s.now().UTC(),
	}

	created, err := s.incidents.CreateIfAbsent(ctx, incident)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	if !created {
		// Lost the race to a concurrent trigger; the open incident exists.
		return nil
	}

	s.logger.Info("recovery incident opened",
		zap.String("user_id", incident.UserID),
		zap.String("type", string(incident.Type)),
	)

	if err := s.events.PublishIncidentOpened(ctx, domain.IncidentOpenedEvent{
		EventID:    uuid.NewString(),
		IncidentID: incident.ID,
		UserID:     incident.UserID,
		Type:       incident.Type,
		DedupeKey:  incident.DedupeKey,
		OpenedAt:   incident.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish incident opened event", zap.Error(err))
	}

	return nil
}
