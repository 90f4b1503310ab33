package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studyhub-contest-service/internal/domain"
)

// ContestService contains the contest lifecycle use cases: registration,
// attempt state transitions, scoring, and rankings.
type ContestService struct {
	contests      ContestRepository
	registrations RegistrationRepository
	attempts      AttemptRepository
	bank          QuestionBank
	users         UserDirectory
	notifier      Notifier
	now           func() time.Time
}

func NewContestService(
	contests ContestRepository,
	registrations RegistrationRepository,
	attempts AttemptRepository,
	bank QuestionBank,
	users UserDirectory,
	notifier Notifier,
) *ContestService {
	return &ContestService{
		contests:      contests,
		registrations: registrations,
		attempts:      attempts,
		bank:          bank,
		users:         users,
		notifier:      notifier,
		now:           time.Now,
	}
}

// NewContestServiceWithClock is test-only for deterministic timestamps.
func NewContestServiceWithClock(
	contests ContestRepository,
	registrations RegistrationRepository,
	attempts AttemptRepository,
	bank QuestionBank,
	users UserDirectory,
	notifier Notifier,
	now func() time.Time,
) *ContestService {
	s := NewContestService(contests, registrations, attempts, bank, users, notifier)
	s.now = now
	return s
}

func (s *ContestService) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, event)
}

// ContestView decorates a contest with its derived status and the computed
// participant count.
type ContestView struct {
	domain.Contest
	Status           domain.ContestStatus `json:"status"`
	ParticipantCount int                  `json:"participantCount"`
}

// GetContest returns one contest with derived fields.
func (s *ContestService) GetContest(ctx context.Context, contestID string) (*ContestView, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	count, err := s.registrations.CountRegistrations(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return &ContestView{
		Contest:          *contest,
		Status:           contest.StatusAt(s.now()),
		ParticipantCount: count,
	}, nil
}

// ListContests returns all contests with derived fields.
func (s *ContestService) ListContests(ctx context.Context) ([]ContestView, error) {
	contests, err := s.contests.ListContests(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]ContestView, 0, len(contests))
	for _, contest := range contests {
		count, err := s.registrations.CountRegistrations(ctx, contest.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, ContestView{
			Contest:          contest,
			Status:           contest.StatusAt(now),
			ParticipantCount: count,
		})
	}
	return views, nil
}

// ContestUpdate holds the organizer-mutable fields.
type ContestUpdate struct {
	Title       *string
	Description *string
	Topics      []string
	Eligibility *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// UpdateContest applies organizer edits. Contests are locked once they leave
// the upcoming window or any attempt exists.
func (s *ContestService) UpdateContest(ctx context.Context, contestID, userID string, update ContestUpdate) (*domain.Contest, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.CreatedBy != userID {
		return nil, domain.ErrContestNotFound
	}
	if contest.StatusAt(s.now()) != domain.ContestUpcoming {
		return nil, domain.ErrContestLocked
	}
	hasAttempts, err := s.attempts.HasAttempts(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if hasAttempts {
		return nil, domain.ErrContestLocked
	}

	if update.Title != nil {
		contest.Title = *update.Title
	}
	if update.Description != nil {
		contest.Description = *update.Description
	}
	if update.Topics != nil {
		contest.Topics = update.Topics
	}
	if update.Eligibility != nil {
		contest.Eligibility = *update.Eligibility
	}
	if update.StartTime != nil {
		contest.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		contest.EndTime = *update.EndTime
	}
	if !contest.StartTime.Before(contest.EndTime) {
		return nil, domain.Validationf("startTime must be before endTime")
	}

	if err := s.contests.UpdateContest(ctx, contest); err != nil {
		return nil, err
	}
	return contest, nil
}

// RemoveAssignment drops one assignment, but never the last one.
func (s *ContestService) RemoveAssignment(ctx context.Context, contestID, userID, assignmentID string) error {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.CreatedBy != userID {
		return domain.ErrContestNotFound
	}
	if contest.StatusAt(s.now()) != domain.ContestUpcoming {
		return domain.ErrContestLocked
	}
	hasAttempts, err := s.attempts.HasAttempts(ctx, contestID)
	if err != nil {
		return err
	}
	if hasAttempts {
		return domain.ErrContestLocked
	}
	assignments, err := s.contests.ListAssignments(ctx, contestID)
	if err != nil {
		return err
	}
	if len(assignments) <= 1 {
		return domain.Validationf("contest must retain at least one question")
	}
	return s.contests.DeleteAssignment(ctx, contestID, assignmentID)
}

// Register adds a user to an upcoming contest.
func (s *ContestService) Register(ctx context.Context, contestID, userID string, isVirtual bool) error {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.StatusAt(s.now()) != domain.ContestUpcoming {
		return domain.ErrRegistrationClosed
	}
	reg := &domain.Registration{
		ID:           uuid.NewString(),
		ContestID:    contestID,
		UserID:       userID,
		IsVirtual:    isVirtual,
		RegisteredAt: s.now(),
	}
	if err := s.registrations.CreateRegistration(ctx, reg); err != nil {
		return err
	}
	s.notify(ctx, Event{Type: "contest.registered", ContestID: contestID, UserID: userID, At: reg.RegisteredAt})
	return nil
}

// Unregister removes a user's registration.
func (s *ContestService) Unregister(ctx context.Context, contestID, userID string) error {
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return err
	}
	if err := s.registrations.DeleteRegistration(ctx, contestID, userID); err != nil {
		return err
	}
	s.notify(ctx, Event{Type: "contest.unregistered", ContestID: contestID, UserID: userID, At: s.now()})
	return nil
}

// StartResult is what a client needs to render or restore an attempt.
type StartResult struct {
	AttemptID      string            `json:"attemptId"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        time.Time         `json:"endTime"`
	Questions      []domain.Question `json:"questions"`
	SavedAnswers   domain.AnswerMap  `json:"savedAnswers"`
	LastActivity   time.Time         `json:"lastActivity"`
	TotalQuestions int               `json:"totalQuestions"`
	TimeRemaining  int               `json:"timeRemaining"`
	IsResuming     bool              `json:"isResuming,omitempty"`
}

// StartAttempt creates the attempt on the first call and resumes the same
// row on every later call. Two racing starts resolve through the
// repository's uniqueness guarantee: the loser re-fetches the winner's row.
func (s *ContestService) StartAttempt(ctx context.Context, contestID, userID string) (*StartResult, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch contest.StatusAt(now) {
	case domain.ContestUpcoming:
		return nil, domain.ErrContestNotStarted
	case domain.ContestEnded:
		return nil, domain.ErrContestEnded
	}
	if _, err := s.registrations.GetRegistration(ctx, contestID, userID); err != nil {
		if errors.Is(err, domain.ErrRegistrationNotFound) {
			return nil, domain.ErrNotRegistered
		}
		return nil, err
	}

	created := false
	existing, err := s.attempts.FindAttempt(ctx, contestID, userID)
	if err != nil && !errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, err
	}
	if existing == nil {
		assignments, err := s.contests.ListAssignments(ctx, contestID)
		if err != nil {
			return nil, err
		}
		attempt := &domain.Attempt{
			ID:             uuid.NewString(),
			ContestID:      contestID,
			UserID:         userID,
			Status:         domain.AttemptInProgress,
			Answers:        domain.AnswerMap{},
			StartTime:      now,
			LastActivity:   now,
			TotalQuestions: len(assignments),
		}
		switch err := s.attempts.CreateAttempt(ctx, attempt); {
		case err == nil:
			existing = attempt
			created = true
			s.notify(ctx, Event{Type: "attempt.started", ContestID: contestID, UserID: userID, AttemptID: attempt.ID, At: now})
		case errors.Is(err, domain.ErrAttemptExists):
			// Lost the creation race: resume whoever won.
			existing, err = s.attempts.FindAttempt(ctx, contestID, userID)
			if err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	if existing.Status == domain.AttemptCompleted {
		return nil, domain.ErrAttemptCompleted
	}

	questions, err := s.contestQuestions(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return &StartResult{
		AttemptID:      existing.ID,
		StartTime:      existing.StartTime,
		EndTime:        contest.EndTime,
		Questions:      questions,
		SavedAnswers:   existing.Answers,
		LastActivity:   existing.LastActivity,
		TotalQuestions: existing.TotalQuestions,
		TimeRemaining:  contest.TimeRemainingAt(now),
		IsResuming:     !created,
	}, nil
}

// contestQuestions loads the assigned questions in assignment order, with
// correct answers and explanations withheld by serialization.
func (s *ContestService) contestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	assignments, err := s.contests.ListAssignments(ctx, contestID)
	if err != nil {
		return nil, err
	}
	byID, err := s.bank.GetByIDs(ctx, assignmentQuestionIDs(assignments))
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(assignments))
	for _, assignment := range assignments {
		if question, ok := byID[assignment.QuestionID]; ok {
			questions = append(questions, question)
		}
	}
	return questions, nil
}

// SaveAnswer merges one answer into an in-progress attempt. When the window
// has already closed it force-completes the attempt and reports
// ErrContestEnded so the client refreshes its state.
func (s *ContestService) SaveAnswer(ctx context.Context, attemptID, userID, questionID string, answer int) (timeRemaining int, err error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return 0, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return 0, domain.ErrAttemptNotFound
	}
	contest, err := s.contests.GetContest(ctx, attempt.ContestID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	if contest.StatusAt(now) == domain.ContestEnded {
		if _, err := s.finalizeAttempt(ctx, attempt, nil, true); err != nil && !errors.Is(err, domain.ErrAttemptCompleted) {
			slog.Error("inline forced completion failed", "attempt", attempt.ID, "error", err)
		}
		return 0, domain.ErrContestEnded
	}

	assignments, err := s.contests.ListAssignments(ctx, attempt.ContestID)
	if err != nil {
		return 0, err
	}
	found := false
	for _, assignment := range assignments {
		if assignment.QuestionID == questionID {
			found = true
			break
		}
	}
	if !found {
		return 0, domain.ErrQuestionNotFound
	}

	if err := s.attempts.SaveAnswer(ctx, attempt.ID, questionID, answer, now); err != nil {
		return 0, err
	}
	return contest.TimeRemainingAt(now), nil
}

// SubmitResult summarizes a completed attempt.
type SubmitResult struct {
	AttemptID       string `json:"attemptId"`
	Score           int    `json:"score"`
	CorrectAnswers  int    `json:"correctAnswers"`
	TotalQuestions  int    `json:"totalQuestions"`
	TimeSpent       int    `json:"timeSpent"`
	IsAutoSubmitted bool   `json:"isAutoSubmitted"`
}

// Submit finalizes an attempt. timeSpent overrides the wall-clock difference
// when the client provides it. Submitting an already-completed attempt is
// rejected without touching the stored result.
func (s *ContestService) Submit(ctx context.Context, attemptID, userID string, timeSpent *int, isAutoSubmit bool) (*SubmitResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != domain.AttemptInProgress {
		return nil, domain.ErrAttemptCompleted
	}
	return s.finalizeAttempt(ctx, attempt, timeSpent, isAutoSubmit)
}

// finalizeAttempt runs the shared scoring path and applies the conditional
// completion. Exactly one caller wins when a sweep and a submit race.
func (s *ContestService) finalizeAttempt(ctx context.Context, attempt *domain.Attempt, timeSpent *int, isAutoSubmit bool) (*SubmitResult, error) {
	assignments, err := s.contests.ListAssignments(ctx, attempt.ContestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.bank.GetByIDs(ctx, assignmentQuestionIDs(assignments))
	if err != nil {
		return nil, err
	}

	now := s.now()
	score, correct := scoreAnswers(attempt.Answers, assignments, questions)
	spent := int(now.Sub(attempt.StartTime).Seconds())
	if timeSpent != nil && *timeSpent >= 0 {
		spent = *timeSpent
	}
	if spent < 0 {
		spent = 0
	}

	result := AttemptResult{
		Score:          score,
		CorrectAnswers: correct,
		TimeSpent:      spent,
		EndTime:        now,
	}
	if err := s.attempts.CompleteAttempt(ctx, attempt.ID, result); err != nil {
		return nil, err
	}
	s.notify(ctx, Event{
		Type:      "attempt.completed",
		ContestID: attempt.ContestID,
		UserID:    attempt.UserID,
		AttemptID: attempt.ID,
		Score:     score,
		At:        now,
	})
	return &SubmitResult{
		AttemptID:       attempt.ID,
		Score:           score,
		CorrectAnswers:  correct,
		TotalQuestions:  attempt.TotalQuestions,
		TimeSpent:       spent,
		IsAutoSubmitted: isAutoSubmit,
	}, nil
}

// QuestionResult is the per-question breakdown exposed after completion.
type QuestionResult struct {
	QuestionID    string   `json:"questionId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	UserAnswer    *int     `json:"userAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Points        int      `json:"points"`
}

// AttemptResults is the full post-completion report.
type AttemptResults struct {
	AttemptID      string           `json:"attemptId"`
	ContestID      string           `json:"contestId"`
	Score          int              `json:"score"`
	TotalPoints    int              `json:"totalPoints"`
	Percentage     int              `json:"percentage"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalQuestions int              `json:"totalQuestions"`
	TimeSpent      int              `json:"timeSpent"`
	Questions      []QuestionResult `json:"questions"`
}

// Results returns the graded breakdown. Only the owner of a completed
// attempt can see correct answers and explanations.
func (s *ContestService) Results(ctx context.Context, attemptID, userID string) (*AttemptResults, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != domain.AttemptCompleted {
		return nil, domain.ErrAttemptNotFound
	}

	assignments, err := s.contests.ListAssignments(ctx, attempt.ContestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.bank.GetByIDs(ctx, assignmentQuestionIDs(assignments))
	if err != nil {
		return nil, err
	}

	breakdown := make([]QuestionResult, 0, len(assignments))
	for _, assignment := range assignments {
		question, ok := questions[assignment.QuestionID]
		if !ok {
			continue
		}
		row := QuestionResult{
			QuestionID:    question.ID,
			Text:          question.Text,
			Options:       question.Options,
			CorrectAnswer: question.CorrectOption,
			Explanation:   question.Explanation,
			Points:        assignment.Points,
		}
		if answer, ok := attempt.Answers[assignment.QuestionID]; ok {
			row.UserAnswer = &answer
			row.IsCorrect = answer == question.CorrectOption
		}
		breakdown = append(breakdown, row)
	}

	total := totalPoints(assignments)
	return &AttemptResults{
		AttemptID:      attempt.ID,
		ContestID:      attempt.ContestID,
		Score:          attempt.Score,
		TotalPoints:    total,
		Percentage:     domain.Percentage(attempt.Score, total),
		CorrectAnswers: attempt.CorrectAnswers,
		TotalQuestions: attempt.TotalQuestions,
		TimeSpent:      attempt.TimeSpent,
		Questions:      breakdown,
	}, nil
}

// ownedAttempt loads an attempt and hides other users' attempts behind
// not-found.
func (s *ContestService) ownedAttempt(ctx context.Context, attemptID, userID string) (*domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, nil
}
