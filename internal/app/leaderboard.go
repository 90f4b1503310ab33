package app

import (
	"context"
	"sort"

	"studyhub-contest-service/internal/domain"
)

// Rankings derives the standings for one contest from its completed
// attempts. Nothing is cached or persisted; every call recomputes.
func (s *ContestService) Rankings(ctx context.Context, contestID string) (*domain.Leaderboard, error) {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListCompleted(ctx, contestID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.contests.ListAssignments(ctx, contestID)
	if err != nil {
		return nil, err
	}
	total := totalPoints(assignments)

	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].Score != attempts[j].Score {
			return attempts[i].Score > attempts[j].Score
		}
		if attempts[i].TimeSpent != attempts[j].TimeSpent {
			return attempts[i].TimeSpent < attempts[j].TimeSpent
		}
		// Exact ties still get distinct sequential ranks; order them by
		// user so the permutation is reproducible.
		return attempts[i].UserID < attempts[j].UserID
	})

	userIDs := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		userIDs = append(userIDs, attempt.UserID)
	}
	profiles := map[string]domain.UserProfile{}
	if s.users != nil && len(userIDs) > 0 {
		profiles, err = s.users.GetProfiles(ctx, userIDs)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]domain.RankingEntry, 0, len(attempts))
	var sumScore, sumPct, sumTime int
	for i, attempt := range attempts {
		profile := profiles[attempt.UserID]
		pct := domain.Percentage(attempt.Score, total)
		entries = append(entries, domain.RankingEntry{
			Rank:           i + 1,
			UserID:         attempt.UserID,
			Name:           profile.Name,
			Institution:    profile.Institution,
			Score:          attempt.Score,
			Percentage:     pct,
			CorrectAnswers: attempt.CorrectAnswers,
			TotalQuestions: attempt.TotalQuestions,
			TimeSpent:      attempt.TimeSpent,
		})
		sumScore += attempt.Score
		sumPct += pct
		sumTime += attempt.TimeSpent
	}

	stats := domain.RankingStats{}
	if n := len(entries); n > 0 {
		stats.AverageScore = float64(sumScore) / float64(n)
		stats.AveragePercentage = float64(sumPct) / float64(n)
		stats.AverageTimeSpent = float64(sumTime) / float64(n)
	}

	return &domain.Leaderboard{
		ContestID:         contestID,
		Entries:           entries,
		Stats:             stats,
		TotalParticipants: len(entries),
		GeneratedAt:       s.now(),
	}, nil
}
