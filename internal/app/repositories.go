package app

import (
	"context"
	"time"

	"studyhub-contest-service/internal/domain"
)

// ContestRepository persists contests and their question assignments.
type ContestRepository interface {
	// CreateContestWithAssignments writes the contest and all assignments
	// atomically; a failed write leaves nothing behind.
	CreateContestWithAssignments(ctx context.Context, contest *domain.Contest, assignments []domain.QuestionAssignment) error
	GetContest(ctx context.Context, id string) (*domain.Contest, error)
	UpdateContest(ctx context.Context, contest *domain.Contest) error
	ListContests(ctx context.Context) ([]domain.Contest, error)
	ListAssignments(ctx context.Context, contestID string) ([]domain.QuestionAssignment, error)
	DeleteAssignment(ctx context.Context, contestID, assignmentID string) error
}

// RegistrationRepository tracks which users may start an attempt.
type RegistrationRepository interface {
	// CreateRegistration returns domain.ErrAlreadyRegistered on a duplicate
	// (contest, user) pair.
	CreateRegistration(ctx context.Context, reg *domain.Registration) error
	DeleteRegistration(ctx context.Context, contestID, userID string) error
	GetRegistration(ctx context.Context, contestID, userID string) (*domain.Registration, error)
	// CountRegistrations is the participant count; computed on read so it
	// can never drift from the rows.
	CountRegistrations(ctx context.Context, contestID string) (int, error)
}

// AttemptResult is the frozen outcome applied when an attempt completes.
type AttemptResult struct {
	Score          int
	CorrectAnswers int
	TimeSpent      int
	EndTime        time.Time
}

// AttemptRepository owns the attempt rows and their state transitions.
type AttemptRepository interface {
	// CreateAttempt returns domain.ErrAttemptExists when an attempt for the
	// same (contest, user) already exists, regardless of status. Callers
	// re-fetch and resume or reject.
	CreateAttempt(ctx context.Context, attempt *domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (*domain.Attempt, error)
	FindAttempt(ctx context.Context, contestID, userID string) (*domain.Attempt, error)
	// SaveAnswer sets a single answer key and bumps lastActivity, only while
	// the attempt is still in progress.
	SaveAnswer(ctx context.Context, attemptID, questionID string, answer int, now time.Time) error
	// CompleteAttempt applies the result conditionally: it succeeds only if
	// the attempt is still in progress, so a racing sweep and explicit
	// submit resolve to exactly one winner. The loser gets
	// domain.ErrAttemptCompleted.
	CompleteAttempt(ctx context.Context, attemptID string, result AttemptResult) error
	HasAttempts(ctx context.Context, contestID string) (bool, error)
	ListCompleted(ctx context.Context, contestID string) ([]domain.Attempt, error)
	// ListExpired returns in-progress attempts whose parent contest window
	// has already closed.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Attempt, error)
}

// QuestionBank is the read-only catalog of scored questions.
type QuestionBank interface {
	// ListByTier returns up to limit questions of one difficulty tier
	// matching the filter, most recently created first.
	ListByTier(ctx context.Context, tier domain.Difficulty, filter domain.BankFilter, limit int) ([]domain.Question, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

// UserDirectory resolves user identity for leaderboard rows.
type UserDirectory interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]domain.UserProfile, error)
}

// Event is a fire-and-forget notification emitted on lifecycle transitions.
type Event struct {
	Type      string    `json:"type"`
	ContestID string    `json:"contestId"`
	UserID    string    `json:"userId,omitempty"`
	AttemptID string    `json:"attemptId,omitempty"`
	Score     int       `json:"score,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes events best-effort; failures are logged, never returned.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}
