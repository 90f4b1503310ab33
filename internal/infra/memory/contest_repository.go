package memory

import (
	"context"
	"sort"
	"sync"

	"studyhub-contest-service/internal/domain"
)

// ContestRepository is an in-memory implementation of app.ContestRepository,
// used by tests and the no-database dev mode.
type ContestRepository struct {
	mu          sync.RWMutex
	contests    map[string]domain.Contest
	assignments map[string][]domain.QuestionAssignment
}

func NewContestRepository() *ContestRepository {
	return &ContestRepository{
		contests:    make(map[string]domain.Contest),
		assignments: make(map[string][]domain.QuestionAssignment),
	}
}

func (r *ContestRepository) CreateContestWithAssignments(_ context.Context, contest *domain.Contest, assignments []domain.QuestionAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contests[contest.ID] = *contest
	r.assignments[contest.ID] = append([]domain.QuestionAssignment(nil), assignments...)
	return nil
}

func (r *ContestRepository) GetContest(_ context.Context, id string) (*domain.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	contest, ok := r.contests[id]
	if !ok {
		return nil, domain.ErrContestNotFound
	}
	return &contest, nil
}

func (r *ContestRepository) UpdateContest(_ context.Context, contest *domain.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contests[contest.ID]; !ok {
		return domain.ErrContestNotFound
	}
	r.contests[contest.ID] = *contest
	return nil
}

func (r *ContestRepository) ListContests(_ context.Context) ([]domain.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	contests := make([]domain.Contest, 0, len(r.contests))
	for _, contest := range r.contests {
		contests = append(contests, contest)
	}
	sort.Slice(contests, func(i, j int) bool {
		return contests[i].CreatedAt.Before(contests[j].CreatedAt)
	})
	return contests, nil
}

func (r *ContestRepository) ListAssignments(_ context.Context, contestID string) ([]domain.QuestionAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.contests[contestID]; !ok {
		return nil, domain.ErrContestNotFound
	}
	return append([]domain.QuestionAssignment(nil), r.assignments[contestID]...), nil
}

func (r *ContestRepository) DeleteAssignment(_ context.Context, contestID, assignmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignments := r.assignments[contestID]
	for i, assignment := range assignments {
		if assignment.ID == assignmentID {
			r.assignments[contestID] = append(assignments[:i:i], assignments[i+1:]...)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// RegistrationRepository is the in-memory app.RegistrationRepository.
type RegistrationRepository struct {
	mu            sync.RWMutex
	registrations map[string]domain.Registration // key: contestID+"/"+userID
}

func NewRegistrationRepository() *RegistrationRepository {
	return &RegistrationRepository{registrations: make(map[string]domain.Registration)}
}

func regKey(contestID, userID string) string { return contestID + "/" + userID }

func (r *RegistrationRepository) CreateRegistration(_ context.Context, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey(reg.ContestID, reg.UserID)
	if _, ok := r.registrations[key]; ok {
		return domain.ErrAlreadyRegistered
	}
	r.registrations[key] = *reg
	return nil
}

func (r *RegistrationRepository) DeleteRegistration(_ context.Context, contestID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey(contestID, userID)
	if _, ok := r.registrations[key]; !ok {
		return domain.ErrRegistrationNotFound
	}
	delete(r.registrations, key)
	return nil
}

func (r *RegistrationRepository) GetRegistration(_ context.Context, contestID, userID string) (*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[regKey(contestID, userID)]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (r *RegistrationRepository) CountRegistrations(_ context.Context, contestID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, reg := range r.registrations {
		if reg.ContestID == contestID {
			count++
		}
	}
	return count, nil
}
