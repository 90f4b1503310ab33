package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"studyhub-contest-service/internal/domain"
)

// tierWeights maps a contest difficulty to the (easy, medium, hard) share of
// its question mix.
type tierWeights struct {
	easy, medium, hard float64
}

var difficultyWeights = map[domain.Difficulty]tierWeights{
	domain.DifficultyEasy:   {easy: 0.7, medium: 0.2, hard: 0.1},
	domain.DifficultyMedium: {easy: 0.3, medium: 0.5, hard: 0.2},
	domain.DifficultyHard:   {easy: 0.1, medium: 0.3, hard: 0.6},
	domain.DifficultyExpert: {easy: 0.0, medium: 0.3, hard: 0.7},
}

// TierCounts rounds each tier share independently, then lets the dominant
// tier absorb the rounding remainder so the counts always sum to total.
func TierCounts(total int, difficulty domain.Difficulty) (easy, medium, hard int) {
	weights := difficultyWeights[difficulty]
	easy = int(math.Round(float64(total) * weights.easy))
	medium = int(math.Round(float64(total) * weights.medium))
	hard = int(math.Round(float64(total) * weights.hard))

	drift := total - (easy + medium + hard)
	if drift != 0 {
		switch {
		case weights.easy >= weights.medium && weights.easy >= weights.hard:
			easy += drift
		case weights.medium >= weights.hard:
			medium += drift
		default:
			hard += drift
		}
	}
	if easy < 0 {
		easy = 0
	}
	if medium < 0 {
		medium = 0
	}
	if hard < 0 {
		hard = 0
	}
	return easy, medium, hard
}

// GenerateSpec is the input to contest generation.
type GenerateSpec struct {
	Title         string
	Description   string
	Difficulty    domain.Difficulty
	Topics        []string
	Subjects      []string
	Eligibility   string
	StartTime     time.Time
	EndTime       time.Time
	QuestionCount int
	CreatedBy     string
}

func (s GenerateSpec) validate() error {
	if s.Title == "" {
		return domain.Validationf("title is required")
	}
	if s.QuestionCount <= 0 {
		return domain.Validationf("questionCount must be positive")
	}
	if !s.Difficulty.Valid() {
		return domain.Validationf("unknown difficulty %q", s.Difficulty)
	}
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return domain.Validationf("startTime and endTime are required")
	}
	if !s.StartTime.Before(s.EndTime) {
		return domain.Validationf("startTime must be before endTime")
	}
	return nil
}

// GeneratedContest is the generator output: the persisted contest, its
// assignments, the selected questions, and the derived point totals.
type GeneratedContest struct {
	Contest      *domain.Contest
	Assignments  []domain.QuestionAssignment
	Questions    []domain.Question
	TotalPoints  int
	PassingScore int
}

// CreateContest composes a contest from the bank and persists it with its
// assignments in one transaction.
func (s *ContestService) CreateContest(ctx context.Context, spec GenerateSpec) (*GeneratedContest, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	questions, err := s.selectQuestions(ctx, spec)
	if err != nil {
		return nil, err
	}

	now := s.now()
	contest := &domain.Contest{
		ID:          uuid.NewString(),
		Title:       spec.Title,
		Description: spec.Description,
		Difficulty:  spec.Difficulty,
		Topics:      spec.Topics,
		Eligibility: spec.Eligibility,
		StartTime:   spec.StartTime,
		EndTime:     spec.EndTime,
		CreatedBy:   spec.CreatedBy,
		CreatedAt:   now,
	}

	assignments := make([]domain.QuestionAssignment, len(questions))
	for i, question := range questions {
		assignments[i] = domain.QuestionAssignment{
			ID:         uuid.NewString(),
			ContestID:  contest.ID,
			QuestionID: question.ID,
			Points:     domain.DefaultQuestionPoints,
			Position:   i,
			CreatedAt:  now,
		}
	}

	if err := s.contests.CreateContestWithAssignments(ctx, contest, assignments); err != nil {
		return nil, fmt.Errorf("persist contest: %w", err)
	}

	total := spec.QuestionCount * domain.DefaultQuestionPoints
	s.notify(ctx, Event{Type: "contest.created", ContestID: contest.ID, UserID: spec.CreatedBy, At: now})
	return &GeneratedContest{
		Contest:      contest,
		Assignments:  assignments,
		Questions:    questions,
		TotalPoints:  total,
		PassingScore: int(math.Ceil(float64(total) * 0.6)),
	}, nil
}

// selectQuestions fetches up to each tier's count from the bank, newest
// first, concatenates easy+medium+hard, and truncates to the requested size.
func (s *ContestService) selectQuestions(ctx context.Context, spec GenerateSpec) ([]domain.Question, error) {
	easy, medium, hard := TierCounts(spec.QuestionCount, spec.Difficulty)
	filter := domain.BankFilter{Subjects: spec.Subjects, Topics: spec.Topics}

	pool := make([]domain.Question, 0, spec.QuestionCount)
	for _, tier := range []struct {
		difficulty domain.Difficulty
		count      int
	}{
		{domain.DifficultyEasy, easy},
		{domain.DifficultyMedium, medium},
		{domain.DifficultyHard, hard},
	} {
		if tier.count == 0 {
			continue
		}
		questions, err := s.bank.ListByTier(ctx, tier.difficulty, filter, tier.count)
		if err != nil {
			return nil, fmt.Errorf("query bank tier %s: %w", tier.difficulty, err)
		}
		pool = append(pool, questions...)
	}

	if len(pool) < spec.QuestionCount {
		return nil, &domain.InsufficientQuestionsError{
			Requested: spec.QuestionCount,
			Available: len(pool),
		}
	}
	return pool[:spec.QuestionCount], nil
}
