package domain

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

// Difficulty is the tier assigned to a contest or bank question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Valid reports whether d is one of the four known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// ContestStatus is always derived from the contest window; it is never
// stored, so gating logic has a single source of truth.
type ContestStatus string

const (
	ContestUpcoming ContestStatus = "upcoming"
	ContestActive   ContestStatus = "active"
	ContestEnded    ContestStatus = "ended"
)

// AttemptStatus is the state of a single user's engagement with a contest.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// Contest is a timed set of point-weighted question assignments.
type Contest struct {
	bun.BaseModel `bun:"table:contests,alias:c"`

	ID          string     `bun:"id,pk" json:"id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description string     `bun:"description" json:"description"`
	Difficulty  Difficulty `bun:"difficulty,notnull" json:"difficulty"`
	Topics      []string   `bun:"topics,type:jsonb" json:"topics"`
	Eligibility string     `bun:"eligibility" json:"eligibility,omitempty"`
	StartTime   time.Time  `bun:"start_time,notnull" json:"startTime"`
	EndTime     time.Time  `bun:"end_time,notnull" json:"endTime"`
	CreatedBy   string     `bun:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

// StatusAt derives the contest status from its window.
func (c *Contest) StatusAt(now time.Time) ContestStatus {
	switch {
	case now.Before(c.StartTime):
		return ContestUpcoming
	case now.Before(c.EndTime):
		return ContestActive
	default:
		return ContestEnded
	}
}

// TimeRemainingAt is the number of whole seconds left in the window, never
// negative.
func (c *Contest) TimeRemainingAt(now time.Time) int {
	remaining := c.EndTime.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// DefaultQuestionPoints is the uniform weight assigned by the generator.
const DefaultQuestionPoints = 5

// QuestionAssignment joins a bank question to a contest with a point weight.
// Position records creation order.
type QuestionAssignment struct {
	bun.BaseModel `bun:"table:question_assignments,alias:qa"`

	ID         string    `bun:"id,pk" json:"id"`
	ContestID  string    `bun:"contest_id,notnull" json:"contestId"`
	QuestionID string    `bun:"question_id,notnull" json:"questionId"`
	Points     int       `bun:"points,notnull" json:"points"`
	Position   int       `bun:"position,notnull" json:"position"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Registration marks a user as eligible to start an attempt. One per
// (contest, user).
type Registration struct {
	bun.BaseModel `bun:"table:contest_registrations,alias:cr"`

	ID           string    `bun:"id,pk" json:"id"`
	ContestID    string    `bun:"contest_id,notnull" json:"contestId"`
	UserID       string    `bun:"user_id,notnull" json:"userId"`
	IsVirtual    bool      `bun:"is_virtual,notnull,default:false" json:"isVirtual"`
	RegisteredAt time.Time `bun:"registered_at,notnull" json:"registrationTime"`
}

// AnswerMap is the incrementally built questionID -> selected option index
// payload, persisted as jsonb.
type AnswerMap map[string]int

// Attempt is the central mutable entity: one per (user, contest).
type Attempt struct {
	bun.BaseModel `bun:"table:contest_attempts,alias:ca"`

	ID             string        `bun:"id,pk" json:"id"`
	ContestID      string        `bun:"contest_id,notnull" json:"contestId"`
	UserID         string        `bun:"user_id,notnull" json:"userId"`
	Status         AttemptStatus `bun:"status,notnull" json:"status"`
	Answers        AnswerMap     `bun:"answers,type:jsonb" json:"answers"`
	StartTime      time.Time     `bun:"start_time,notnull" json:"startTime"`
	EndTime        *time.Time    `bun:"end_time" json:"endTime,omitempty"`
	LastActivity   time.Time     `bun:"last_activity,notnull" json:"lastActivity"`
	TimeSpent      int           `bun:"time_spent,notnull,default:0" json:"timeSpent"`
	Score          int           `bun:"score,notnull,default:0" json:"score"`
	CorrectAnswers int           `bun:"correct_answers,notnull,default:0" json:"correctAnswers"`
	TotalQuestions int           `bun:"total_questions,notnull" json:"totalQuestions"`
}

// Question is a read-only row from the external bank. CorrectOption indexes
// into Options; it and the explanation are never serialized to clients
// before completion.
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"-"`
	Explanation   string     `json:"-"`
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedAt     time.Time  `json:"-"`
}

// BankFilter narrows bank queries by subject/topic tags. Empty slices match
// everything.
type BankFilter struct {
	Subjects []string
	Topics   []string
}

// UserProfile is the identity slice the leaderboard needs.
type UserProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

// RankingEntry is one leaderboard row, derived per request.
type RankingEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Institution    string `json:"institution,omitempty"`
	Score          int    `json:"score"`
	Percentage     int    `json:"percentage"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalQuestions int    `json:"totalQuestions"`
	TimeSpent      int    `json:"timeSpent"`
}

// RankingStats aggregates over the full entry list.
type RankingStats struct {
	AverageScore      float64 `json:"averageScore"`
	AveragePercentage float64 `json:"averagePercentage"`
	AverageTimeSpent  float64 `json:"averageTimeSpent"`
}

// Leaderboard is the ordered standings for one contest.
type Leaderboard struct {
	ContestID         string         `json:"contestId"`
	Entries           []RankingEntry `json:"rankings"`
	Stats             RankingStats   `json:"stats"`
	TotalParticipants int            `json:"totalParticipants"`
	GeneratedAt       time.Time      `json:"generatedAt"`
}

// Percentage computes round(score/totalPoints*100), guarding zero totals.
func Percentage(score, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalPoints) * 100))
}
