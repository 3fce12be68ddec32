package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

const incidentsTable = "wf.recovery_incidents"

// IncidentRepository implements port.IncidentRepository using PostgreSQL.
// A partial unique index on (dedupe_key) WHERE status = 'OPEN' backs the
// ON CONFLICT clause, so concurrent triggers collapse to one row.
type IncidentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIncidentRepository wires a PostgreSQL-backed incident repository.
func NewIncidentRepository(exec pgExecutor) *IncidentRepository {
	return &IncidentRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// GetOpenByDedupeKey returns the OPEN incident carrying the dedupe key.
func (r *IncidentRepository) GetOpenByDedupeKey(ctx context.Context, dedupeKey string) (*domain.RecoveryIncident, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "incident_type", "status", "dedupe_key", "created_at").
		From(incidentsTable).
		Where(squirrel.Eq{"dedupe_key": dedupeKey, "status": domain.IncidentOpen}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select incident sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var incident domain.RecoveryIncident
	if err := row.Scan(
		&incident.ID,
		&incident.UserID,
		&incident.Type,
		&incident.Status,
		&incident.DedupeKey,
		&incident.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	return &incident, nil
}

// CreateIfAbsent inserts the incident unless an OPEN duplicate exists.
// Returns whether a row was actually created.
func (r *IncidentRepository) CreateIfAbsent(ctx context.Context, incident domain.RecoveryIncident) (bool, error) {
	stmt, args, err := r.builder.
		Insert(incidentsTable).
		Columns("id", "user_id", "incident_type", "status", "dedupe_key", "created_at").
		Values(incident.ID, incident.UserID, incident.Type, incident.Status, incident.DedupeKey, incident.CreatedAt).
		Suffix("ON CONFLICT (dedupe_key) WHERE status = 'OPEN' DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert incident sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("insert incident: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

var _ port.IncidentRepository = (*IncidentRepository)(nil)
