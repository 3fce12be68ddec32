package postgres

import (
	"context"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExecutor abstracts pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside an explicit transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgExecutor = (*pgxpool.Pool)(nil)

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Repositories bundles the postgres-backed implementations behind one pool.
type Repositories struct {
	Users     *UserRepository
	Auth      *AuthRepository
	Codes     *OTCRepository
	Answers   *AnswerRepository
	Incidents *IncidentRepository
}

// NewRepositories wires every repository onto a shared pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:     NewUserRepository(pool),
		Auth:      NewAuthRepository(pool),
		Codes:     NewOTCRepository(pool),
		Answers:   NewAnswerRepository(pool),
		Incidents: NewIncidentRepository(pool),
	}
}
