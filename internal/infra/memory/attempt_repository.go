package memory

import (
	"context"
	"sync"
	"time"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

// AttemptRepository is the in-memory app.AttemptRepository. It serializes
// every mutation behind one mutex, which gives the same guarantees the
// postgres implementation gets from its unique index and conditional
// updates.
type AttemptRepository struct {
	contests *ContestRepository

	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
	byPair   map[string]string // contestID/userID -> attemptID
}

func NewAttemptRepository(contests *ContestRepository) *AttemptRepository {
	return &AttemptRepository{
		contests: contests,
		attempts: make(map[string]*domain.Attempt),
		byPair:   make(map[string]string),
	}
}

func (r *AttemptRepository) CreateAttempt(_ context.Context, attempt *domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey(attempt.ContestID, attempt.UserID)
	if _, ok := r.byPair[key]; ok {
		return domain.ErrAttemptExists
	}
	stored := cloneAttempt(attempt)
	r.attempts[attempt.ID] = stored
	r.byPair[key] = attempt.ID
	return nil
}

func (r *AttemptRepository) GetAttempt(_ context.Context, id string) (*domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (r *AttemptRepository) FindAttempt(_ context.Context, contestID, userID string) (*domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[regKey(contestID, userID)]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return cloneAttempt(r.attempts[id]), nil
}

func (r *AttemptRepository) SaveAnswer(_ context.Context, attemptID, questionID string, answer int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptCompleted
	}
	if attempt.Answers == nil {
		attempt.Answers = domain.AnswerMap{}
	}
	attempt.Answers[questionID] = answer
	attempt.LastActivity = now
	return nil
}

func (r *AttemptRepository) CompleteAttempt(_ context.Context, attemptID string, result app.AttemptResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptCompleted
	}
	endTime := result.EndTime
	attempt.Status = domain.AttemptCompleted
	attempt.Score = result.Score
	attempt.CorrectAnswers = result.CorrectAnswers
	attempt.TimeSpent = result.TimeSpent
	attempt.EndTime = &endTime
	return nil
}

func (r *AttemptRepository) HasAttempts(_ context.Context, contestID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, attempt := range r.attempts {
		if attempt.ContestID == contestID {
			return true, nil
		}
	}
	return false, nil
}

func (r *AttemptRepository) ListCompleted(_ context.Context, contestID string) ([]domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var completed []domain.Attempt
	for _, attempt := range r.attempts {
		if attempt.ContestID == contestID && attempt.Status == domain.AttemptCompleted {
			completed = append(completed, *cloneAttempt(attempt))
		}
	}
	return completed, nil
}

func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var expired []domain.Attempt
	for _, attempt := range r.attempts {
		if attempt.Status != domain.AttemptInProgress {
			continue
		}
		contest, err := r.contests.GetContest(ctx, attempt.ContestID)
		if err != nil {
			continue
		}
		if contest.EndTime.Before(now) {
			expired = append(expired, *cloneAttempt(attempt))
		}
	}
	return expired, nil
}

func cloneAttempt(attempt *domain.Attempt) *domain.Attempt {
	clone := *attempt
	clone.Answers = make(domain.AnswerMap, len(attempt.Answers))
	for k, v := range attempt.Answers {
		clone.Answers[k] = v
	}
	if attempt.EndTime != nil {
		endTime := *attempt.EndTime
		clone.EndTime = &endTime
	}
	return &clone
}
