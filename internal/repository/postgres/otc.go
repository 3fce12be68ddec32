package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

const codesTable = "wf.one_time_codes"

// OTCRepository implements port.OTCRepository using PostgreSQL.
// The table is append-only: rows are only ever inserted or have their
// attempts/is_verified columns advanced, forming the code audit trail.
type OTCRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOTCRepository wires a PostgreSQL-backed one-time-code repository.
func NewOTCRepository(exec pgExecutor) *OTCRepository {
	return &OTCRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create inserts a new code record.
func (r *OTCRepository) Create(ctx context.Context, code domain.OneTimeCode) error {
	stmt, args, err := r.builder.
		Insert(codesTable).
		Columns("id", "user_id", "code", "attempts", "is_verified", "created_at").
		Values(code.ID, code.UserID, code.Code, code.Attempts, code.IsVerified, code.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert code sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert one-time code: %w", err)
	}

	return nil
}

// GetLatestByUserID returns the most recently created record, which is the
// only authoritative one for verification.
func (r *OTCRepository) GetLatestByUserID(ctx context.Context, userID string) (*domain.OneTimeCode, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "code", "attempts", "is_verified", "created_at").
		From(codesTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select code sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var code domain.OneTimeCode
	if err := row.Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.Attempts,
		&code.IsVerified,
		&code.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan one-time code: %w", err)
	}

	return &code, nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the
// new value.
func (r *OTCRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	stmt := fmt.Sprintf("UPDATE %s SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts", codesTable)

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, id).Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment code attempts: %w", err)
	}

	return attempts, nil
}

// MarkVerified flips is_verified exactly once. The is_verified guard in the
// WHERE clause makes the transition single-shot even under concurrent
// submissions of the correct code.
func (r *OTCRepository) MarkVerified(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update(codesTable).
		Set("is_verified", true).
		Where(squirrel.Eq{"id": id, "is_verified": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark code verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

// CountIssuedSince counts codes created for the identity at or after the
// reference instant, used to enforce the daily issuance quota.
func (r *OTCRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From(codesTable).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count codes sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count issued codes: %w", err)
	}

	return count, nil
}

// CountExhaustedSince counts unverified codes whose attempt budget was spent,
// the coarse signal layered on top of the per-code cap.
func (r *OTCRepository) CountExhaustedSince(ctx context.Context, userID string, since time.Time, attemptCap int) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From(codesTable).
		Where(squirrel.Eq{"user_id": userID, "is_verified": false}).
		Where(squirrel.GtOrEq{"created_at": since}).
		Where(squirrel.GtOrEq{"attempts": attemptCap}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count exhausted sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count exhausted codes: %w", err)
	}

	return count, nil
}

var _ port.OTCRepository = (*OTCRepository)(nil)
