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

const answersTable = "wf.security_answers"

// AnswerRepository implements port.AnswerRepository using PostgreSQL.
type AnswerRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAnswerRepository wires a PostgreSQL-backed security answer repository.
func NewAnswerRepository(exec pgExecutor) *AnswerRepository {
	return &AnswerRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

func (r *AnswerRepository) selectAnswers() squirrel.SelectBuilder {
	return r.builder.
		Select("id", "user_id", "question_id", "question", "answer_hash", "answer_algo", "updated_at").
		From(answersTable)
}

// ListByUserID returns every registered question/answer pair for an identity.
func (r *AnswerRepository) ListByUserID(ctx context.Context, userID string) ([]domain.SecurityAnswer, error) {
	stmt, args, err := r.selectAnswers().
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("question_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select answers sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query security answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.SecurityAnswer
	for rows.Next() {
		var answer domain.SecurityAnswer
		if err := rows.Scan(
			&answer.ID,
			&answer.UserID,
			&answer.QuestionID,
			&answer.Question,
			&answer.AnswerHash,
			&answer.AnswerAlgo,
			&answer.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan security answer: %w", err)
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security answers: %w", err)
	}

	return answers, nil
}

// GetByQuestionID loads a single answer pair for the identity and question.
func (r *AnswerRepository) GetByQuestionID(ctx context.Context, userID, questionID string) (*domain.SecurityAnswer, error) {
	stmt, args, err := r.selectAnswers().
		Where(squirrel.Eq{"user_id": userID, "question_id": questionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select answer sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var answer domain.SecurityAnswer
	if err := row.Scan(
		&answer.ID,
		&answer.UserID,
		&answer.QuestionID,
		&answer.Question,
		&answer.AnswerHash,
		&answer.AnswerAlgo,
		&answer.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan security answer: %w", err)
	}

	return &answer, nil
}

// UpdateAnswerHash migrates stored answer material in place.
func (r *AnswerRepository) UpdateAnswerHash(ctx context.Context, id, answerHash, answerAlgo string, updatedAt time.Time) error {
	stmt, args, err := r.builder.
		Update(answersTable).
		Set("answer_hash", answerHash).
		Set("answer_algo", answerAlgo).
		Set("updated_at", updatedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update answer sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update security answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.AnswerRepository = (*AnswerRepository)(nil)
