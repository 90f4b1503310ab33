package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

// AttemptRepository persists attempts through bun. The unique index on
// (contest_id, user_id) serializes racing starts, and completion is a
// conditional update on status so sweeps and submits cannot both apply.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, attempt *domain.Attempt) error {
	_, err := r.db.NewInsert().Model(attempt).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrAttemptExists
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) GetAttempt(ctx context.Context, id string) (*domain.Attempt, error) {
	attempt := new(domain.Attempt)
	err := r.db.NewSelect().Model(attempt).Where("ca.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt: %w", err)
	}
	return attempt, nil
}

func (r *AttemptRepository) FindAttempt(ctx context.Context, contestID, userID string) (*domain.Attempt, error) {
	attempt := new(domain.Attempt)
	err := r.db.NewSelect().
		Model(attempt).
		Where("ca.contest_id = ?", contestID).
		Where("ca.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return attempt, nil
}

// SaveAnswer sets one jsonb key in place. Writing a single key per call
// means overlapping saves for different questions merge instead of
// clobbering each other.
func (r *AttemptRepository) SaveAnswer(ctx context.Context, attemptID, questionID string, answer int, now time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Attempt)(nil)).
		Set("answers = jsonb_set(coalesce(answers, '{}'::jsonb), ARRAY[?], to_jsonb(?::int))", questionID, answer).
		Set("last_activity = ?", now).
		Where("id = ?", attemptID).
		Where("status = ?", domain.AttemptInProgress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return r.missingOrCompleted(ctx, attemptID)
	}
	return nil
}

func (r *AttemptRepository) CompleteAttempt(ctx context.Context, attemptID string, result app.AttemptResult) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Attempt)(nil)).
		Set("status = ?", domain.AttemptCompleted).
		Set("score = ?", result.Score).
		Set("correct_answers = ?", result.CorrectAnswers).
		Set("time_spent = ?", result.TimeSpent).
		Set("end_time = ?", result.EndTime).
		Where("id = ?", attemptID).
		Where("status = ?", domain.AttemptInProgress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return r.missingOrCompleted(ctx, attemptID)
	}
	return nil
}

// missingOrCompleted disambiguates a zero-row conditional update.
func (r *AttemptRepository) missingOrCompleted(ctx context.Context, attemptID string) error {
	exists, err := r.db.NewSelect().
		Model((*domain.Attempt)(nil)).
		Where("ca.id = ?", attemptID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAttemptCompleted
}

func (r *AttemptRepository) HasAttempts(ctx context.Context, contestID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*domain.Attempt)(nil)).
		Where("ca.contest_id = ?", contestID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check attempts: %w", err)
	}
	return exists, nil
}

func (r *AttemptRepository) ListCompleted(ctx context.Context, contestID string) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	err := r.db.NewSelect().
		Model(&attempts).
		Where("ca.contest_id = ?", contestID).
		Where("ca.status = ?", domain.AttemptCompleted).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list completed attempts: %w", err)
	}
	return attempts, nil
}

func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	err := r.db.NewSelect().
		Model(&attempts).
		Join("JOIN contests AS c ON c.id = ca.contest_id").
		Where("ca.status = ?", domain.AttemptInProgress).
		Where("c.end_time < ?", now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	return attempts, nil
}

// isUniqueViolation reports a postgres 23505 from the pgdriver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
