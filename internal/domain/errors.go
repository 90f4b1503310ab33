package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrContestNotFound indicates the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")
	// ErrAttemptNotFound indicates no attempt exists or it belongs to someone else.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound indicates a question ID outside the contest's assignments.
	ErrQuestionNotFound = errors.New("question not found in contest")
	// ErrNotRegistered is returned when a user starts without a registration.
	ErrNotRegistered = errors.New("user not registered for contest")
	// ErrAlreadyRegistered is returned on a duplicate registration.
	ErrAlreadyRegistered = errors.New("user already registered for contest")
	// ErrRegistrationNotFound is returned when unregistering without a registration.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrRegistrationClosed is returned when registering outside the upcoming window.
	ErrRegistrationClosed = errors.New("registration is only open before the contest starts")
	// ErrContestNotStarted is returned when starting before the window opens.
	ErrContestNotStarted = errors.New("contest has not started yet")
	// ErrContestEnded is returned on writes after the window closes.
	ErrContestEnded = errors.New("contest has ended")
	// ErrAttemptCompleted is returned on any mutation of a completed attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrAttemptExists is returned by repositories when the (user, contest)
	// uniqueness constraint is hit; callers resume the existing attempt.
	ErrAttemptExists = errors.New("attempt already exists for user and contest")
	// ErrContestLocked is returned when mutating a contest that has attempts
	// or is no longer upcoming.
	ErrContestLocked = errors.New("contest can no longer be modified")
)

// InsufficientQuestionsError reports how many bank questions matched when the
// generator could not satisfy the requested count.
type InsufficientQuestionsError struct {
	Requested int
	Available int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("insufficient questions: requested %d, only %d available", e.Requested, e.Available)
}

// ValidationError carries a client-facing message for malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
