package service

import (
	"errors"
	"fmt"
)

var (
	ErrConstruction        = errors.New("invalid question")
	ErrBankEmpty           = errors.New("question bank is empty")
	ErrNoActiveSession     = errors.New("no active quiz session")
	ErrInvalidIndex        = errors.New("question index out of range")
	ErrInvalidAnswer       = errors.New("answer label not offered for the current question")
	ErrQuizAlreadyFinished = errors.New("quiz already finished")
	ErrPersistence         = errors.New("session storage failure")

	// ErrActiveSessionExists is returned by stores asked to create a second
	// active session for the same user.
	ErrActiveSessionExists = errors.New("user already has an active session")
)

// InvalidIndexError carries the bank size so the caller can tell the user
// which numbers are valid.
type InvalidIndexError struct {
	Index int
	Total int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("question index %d out of range [0, %d)", e.Index, e.Total)
}

func (e *InvalidIndexError) Is(target error) bool { return target == ErrInvalidIndex }

// PersistenceError wraps a failure from the SessionStore.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Locale keys for the messages shown when an operation fails.
const (
	KeyNoActiveQuiz          = "no_active_quiz"
	KeyInvalidQuestionNumber = "invalid_question_number"
	KeyUnexpectedAction      = "unexpected_action"
	KeyQuizAlreadyFinished   = "quiz_already_finished"
	KeyInternalError         = "internal_error"
)

// MessageKey maps an operation error to the locale key the transport shows.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrNoActiveSession):
		return KeyNoActiveQuiz
	case errors.Is(err, ErrInvalidIndex):
		return KeyInvalidQuestionNumber
	case errors.Is(err, ErrInvalidAnswer):
		return KeyUnexpectedAction
	case errors.Is(err, ErrQuizAlreadyFinished):
		return KeyQuizAlreadyFinished
	default:
		return KeyInternalError
	}
}
