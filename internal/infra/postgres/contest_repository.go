package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"studyhub-contest-service/internal/domain"
)

// ContestRepository persists contests and assignments through bun.
type ContestRepository struct {
	db *bun.DB
}

func NewContestRepository(db *bun.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

// CreateContestWithAssignments writes the contest and its assignments in one
// transaction so a validation failure mid-generation leaves nothing behind.
func (r *ContestRepository) CreateContestWithAssignments(ctx context.Context, contest *domain.Contest, assignments []domain.QuestionAssignment) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(contest).Exec(ctx); err != nil {
			return fmt.Errorf("insert contest: %w", err)
		}
		if len(assignments) > 0 {
			if _, err := tx.NewInsert().Model(&assignments).Exec(ctx); err != nil {
				return fmt.Errorf("insert assignments: %w", err)
			}
		}
		return nil
	})
}

func (r *ContestRepository) GetContest(ctx context.Context, id string) (*domain.Contest, error) {
	contest := new(domain.Contest)
	err := r.db.NewSelect().Model(contest).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrContestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select contest: %w", err)
	}
	return contest, nil
}

func (r *ContestRepository) UpdateContest(ctx context.Context, contest *domain.Contest) error {
	res, err := r.db.NewUpdate().Model(contest).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update contest: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

func (r *ContestRepository) ListContests(ctx context.Context) ([]domain.Contest, error) {
	var contests []domain.Contest
	if err := r.db.NewSelect().Model(&contests).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	return contests, nil
}

func (r *ContestRepository) ListAssignments(ctx context.Context, contestID string) ([]domain.QuestionAssignment, error) {
	var assignments []domain.QuestionAssignment
	err := r.db.NewSelect().
		Model(&assignments).
		Where("qa.contest_id = ?", contestID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func (r *ContestRepository) DeleteAssignment(ctx context.Context, contestID, assignmentID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.QuestionAssignment)(nil)).
		Where("contest_id = ?", contestID).
		Where("id = ?", assignmentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// RegistrationRepository persists registrations; the participant count is a
// COUNT over the rows, never a stored counter.
type RegistrationRepository struct {
	db *bun.DB
}

func NewRegistrationRepository(db *bun.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) CreateRegistration(ctx context.Context, reg *domain.Registration) error {
	_, err := r.db.NewInsert().Model(reg).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) DeleteRegistration(ctx context.Context, contestID, userID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Registration)(nil)).
		Where("contest_id = ?", contestID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (r *RegistrationRepository) GetRegistration(ctx context.Context, contestID, userID string) (*domain.Registration, error) {
	reg := new(domain.Registration)
	err := r.db.NewSelect().
		Model(reg).
		Where("cr.contest_id = ?", contestID).
		Where("cr.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) CountRegistrations(ctx context.Context, contestID string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*domain.Registration)(nil)).
		Where("cr.contest_id = ?", contestID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}
