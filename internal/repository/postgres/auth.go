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

const authTable = "wf.user_auth"

// AuthRepository implements port.AuthRepository using PostgreSQL.
// Counter increments run as single UPDATE ... RETURNING statements so
// concurrent failures against the same record cannot lose updates.
type AuthRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuthRepository wires a PostgreSQL-backed auth state repository.
func NewAuthRepository(exec pgExecutor) *AuthRepository {
	return &AuthRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// GetByUserID loads the authentication record for an identity.
func (r *AuthRepository) GetByUserID(ctx context.Context, userID string) (*domain.AuthRecord, error) {
	stmt, args, err := r.builder.
		Select(
			"user_id",
			"password_hash",
			"password_algo",
			"failed_attempts",
			"question_attempts",
			"is_disabled",
			"last_failed_attempt",
			"last_password_change",
		).
		From(authTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select auth sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		record     domain.AuthRecord
		lastFailed *time.Time
	)
	if err := row.Scan(
		&record.UserID,
		&record.PasswordHash,
		&record.PasswordAlgo,
		&record.FailedAttempts,
		&record.QuestionAttempts,
		&record.IsDisabled,
		&lastFailed,
		&record.LastPasswordChange,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan auth record: %w", err)
	}

	record.LastFailedAttempt = lastFailed

	return &record, nil
}

// UpdatePassword replaces the stored password material.
func (r *AuthRepository) UpdatePassword(ctx context.Context, userID, passwordHash, passwordAlgo string, changedAt time.Time) error {
	stmt, args, err := r.builder.
		Update(authTable).
		Set("password_hash", passwordHash).
		Set("password_algo", passwordAlgo).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// IncrementFailedAttempts bumps the login failure counter atomically and
// returns the new value.
func (r *AuthRepository) IncrementFailedAttempts(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.incrementCounter(ctx, "failed_attempts", userID, at)
}

// IncrementQuestionAttempts bumps the security-question failure counter
// atomically and returns the new value.
func (r *AuthRepository) IncrementQuestionAttempts(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.incrementCounter(ctx, "question_attempts", userID, at)
}

func (r *AuthRepository) incrementCounter(ctx context.Context, column, userID string, at time.Time) (int, error) {
	stmt := fmt.Sprintf(
		"UPDATE %s SET %s = %s + 1, last_failed_attempt = $1 WHERE user_id = $2 RETURNING %s",
		authTable, column, column, column,
	)

	var value int
	if err := r.exec.QueryRow(ctx, stmt, at, userID).Scan(&value); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment %s: %w", column, err)
	}

	return value, nil
}

// ResetFailedAttempts clears the login failure counter.
func (r *AuthRepository) ResetFailedAttempts(ctx context.Context, userID string) error {
	return r.setColumns(ctx, userID, map[string]any{"failed_attempts": 0})
}

// ResetQuestionAttempts clears the security-question failure counter.
func (r *AuthRepository) ResetQuestionAttempts(ctx context.Context, userID string) error {
	return r.setColumns(ctx, userID, map[string]any{"question_attempts": 0})
}

// SetDisabled toggles the disabled flag.
func (r *AuthRepository) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	return r.setColumns(ctx, userID, map[string]any{"is_disabled": disabled})
}

// ClearFailureState resets every failure budget in one statement. Invoked
// only after a completed password reset re-proves the identity.
func (r *AuthRepository) ClearFailureState(ctx context.Context, userID string) error {
	return r.setColumns(ctx, userID, map[string]any{
		"failed_attempts":   0,
		"question_attempts": 0,
		"is_disabled":       false,
	})
}

func (r *AuthRepository) setColumns(ctx context.Context, userID string, values map[string]any) error {
	update := r.builder.Update(authTable)
	for column, value := range values {
		update = update.Set(column, value)
	}

	stmt, args, err := update.Where(squirrel.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update auth sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update auth record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.AuthRepository = (*AuthRepository)(nil)
