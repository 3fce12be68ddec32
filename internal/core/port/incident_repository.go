package port

import (
	"context"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
)

// IncidentRepository persists recovery incidents with dedupe semantics.
type IncidentRepository interface {
	GetOpenByDedupeKey(ctx context.Context, dedupeKey string) (*domain.RecoveryIncident, error)
	// CreateIfAbsent inserts the incident unless an OPEN one with the same
	// dedupe key exists; it reports whether a row was created.
	CreateIfAbsent(ctx context.Context, incident domain.RecoveryIncident) (bool, error)
}
