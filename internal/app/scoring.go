package app

import (
	"studyhub-contest-service/internal/domain"
)

// scoreAnswers grades an answer map against the contest's assignments. It is
// a pure function of its inputs so the explicit submit, auto-submit, and
// expiry sweep all reproduce the same result.
func scoreAnswers(answers domain.AnswerMap, assignments []domain.QuestionAssignment, questions map[string]domain.Question) (score, correct int) {
	for _, assignment := range assignments {
		answer, answered := answers[assignment.QuestionID]
		if !answered {
			continue
		}
		question, ok := questions[assignment.QuestionID]
		if !ok {
			continue
		}
		if answer == question.CorrectOption {
			score += assignment.Points
			correct++
		}
	}
	return score, correct
}

// totalPoints sums assignment weights.
func totalPoints(assignments []domain.QuestionAssignment) int {
	total := 0
	for _, assignment := range assignments {
		total += assignment.Points
	}
	return total
}

// assignmentQuestionIDs preserves assignment order.
func assignmentQuestionIDs(assignments []domain.QuestionAssignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.QuestionID)
	}
	return ids
}
