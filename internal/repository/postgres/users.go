package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shiftwise/workforce-iam/internal/core/domain"
	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/repository"
)

// UserRepository implements port.UserRepository using PostgreSQL.
// Identity rows are owned by the workforce CRUD layer; this core only reads them.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed identity reader.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

const usersTable = "wf.users"

func (r *UserRepository) selectUsers() squirrel.SelectBuilder {
	return r.builder.
		Select("id", "email", "phone", "role", "is_first_login", "registered_at").
		From(usersTable)
}

// GetByID retrieves an identity by its identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	stmt, args, err := r.selectUsers().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetByEmail retrieves an identity by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	stmt, args, err := r.selectUsers().Where(squirrel.Eq{"lower(email)": normalized}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

func (r *UserRepository) scanOne(ctx context.Context, stmt string, args []any) (*domain.Identity, error) {
	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		identity domain.Identity
		phone    sql.NullString
	)
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&phone,
		&identity.Role,
		&identity.IsFirstLogin,
		&identity.RegisteredAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if phone.Valid {
		identity.Phone = &phone.String
	}

	return &identity, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
