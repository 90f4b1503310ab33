package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

func TestTierCountsSumToTotal(t *testing.T) {
	difficulties := []domain.Difficulty{
		domain.DifficultyEasy,
		domain.DifficultyMedium,
		domain.DifficultyHard,
		domain.DifficultyExpert,
	}
	for _, difficulty := range difficulties {
		for total := 1; total <= 50; total++ {
			easy, medium, hard := app.TierCounts(total, difficulty)
			if easy < 0 || medium < 0 || hard < 0 {
				t.Fatalf("%s/%d: negative tier count (%d, %d, %d)", difficulty, total, easy, medium, hard)
			}
			if sum := easy + medium + hard; sum != total {
				t.Fatalf("%s/%d: tier counts sum to %d", difficulty, total, sum)
			}
		}
	}
}

func TestCreateContestSelectsExactCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bankWithTiers(20, 20, 20))

	generated, err := f.service.CreateContest(ctx, app.GenerateSpec{
		Title:         "Weekly Sprint",
		Difficulty:    domain.DifficultyMedium,
		StartTime:     f.clock.Now().Add(time.Hour),
		EndTime:       f.clock.Now().Add(2 * time.Hour),
		QuestionCount: 10,
		CreatedBy:     "organizer",
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	if len(generated.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(generated.Questions))
	}
	if len(generated.Assignments) != 10 {
		t.Fatalf("expected 10 assignments, got %d", len(generated.Assignments))
	}
	for _, assignment := range generated.Assignments {
		if assignment.Points != domain.DefaultQuestionPoints {
			t.Fatalf("expected uniform points 5, got %d", assignment.Points)
		}
	}
	if generated.TotalPoints != 50 {
		t.Fatalf("expected totalPoints 50, got %d", generated.TotalPoints)
	}
	if generated.PassingScore != 30 {
		t.Fatalf("expected passingScore 30, got %d", generated.PassingScore)
	}

	// The persisted assignments must match what was returned.
	assignments, err := f.contests.ListAssignments(ctx, generated.Contest.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 10 {
		t.Fatalf("expected 10 persisted assignments, got %d", len(assignments))
	}
}

func TestCreateContestInsufficientQuestions(t *testing.T) {
	ctx := context.Background()
	// Easy-heavy distribution, but only 4 easy questions exist.
	f := newFixture(t, bankWithTiers(4, 0, 0))

	_, err := f.service.CreateContest(ctx, app.GenerateSpec{
		Title:         "Starved",
		Difficulty:    domain.DifficultyEasy,
		StartTime:     f.clock.Now().Add(time.Hour),
		EndTime:       f.clock.Now().Add(2 * time.Hour),
		QuestionCount: 10,
	})
	var insufficient *domain.InsufficientQuestionsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientQuestionsError, got %v", err)
	}
	if insufficient.Requested != 10 || insufficient.Available != 4 {
		t.Fatalf("expected requested=10 available=4, got %+v", insufficient)
	}
}

func TestCreateContestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bankWithTiers(10, 10, 10))

	cases := []app.GenerateSpec{
		{Title: "", Difficulty: domain.DifficultyEasy, StartTime: f.clock.Now(), EndTime: f.clock.Now().Add(time.Hour), QuestionCount: 5},
		{Title: "t", Difficulty: "impossible", StartTime: f.clock.Now(), EndTime: f.clock.Now().Add(time.Hour), QuestionCount: 5},
		{Title: "t", Difficulty: domain.DifficultyEasy, StartTime: f.clock.Now(), EndTime: f.clock.Now().Add(time.Hour), QuestionCount: 0},
		{Title: "t", Difficulty: domain.DifficultyEasy, StartTime: f.clock.Now().Add(time.Hour), EndTime: f.clock.Now(), QuestionCount: 5},
	}
	for i, spec := range cases {
		_, err := f.service.CreateContest(ctx, spec)
		var validation *domain.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

// bankWithTiers builds a static bank with the given counts per tier. Every
// question's correct option is 1.
func bankWithTiers(easy, medium, hard int) []domain.Question {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var questions []domain.Question
	add := func(tier domain.Difficulty, count int) {
		for i := 0; i < count; i++ {
			questions = append(questions, domain.Question{
				ID:            string(tier) + "-" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
				Text:          "Pick option B",
				Options:       []string{"A", "B", "C", "D"},
				CorrectOption: 1,
				Explanation:   "B is correct",
				Subject:       "math",
				Topic:         "algebra",
				Difficulty:    tier,
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			})
		}
	}
	add(domain.DifficultyEasy, easy)
	add(domain.DifficultyMedium, medium)
	add(domain.DifficultyHard, hard)
	return questions
}
