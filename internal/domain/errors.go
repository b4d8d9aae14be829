package domain

import (
	"errors"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when no session matches an id or pin.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotFound is returned when a player id does not resolve.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrPinTaken is returned by stores that already hold a session with the pin.
	ErrPinTaken = errors.New("pin already in use")
	// ErrPinExhausted means no free pin was found within the retry budget.
	ErrPinExhausted = errors.New("could not allocate a unique pin")

	// ErrInvalidTransition rejects session status moves outside waiting -> active -> completed.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionNotJoinable is returned when joining a session that already started.
	ErrSessionNotJoinable = errors.New("session has already started or ended")
	// ErrSessionNotActive is returned when answering outside an active session.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrNoPlayers blocks starting a session nobody joined.
	ErrNoPlayers = errors.New("session has no players")
	// ErrNoQuestions blocks starting a session of an empty quiz.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrQuestionNotCurrent rejects answers to a question other than the current one.
	ErrQuestionNotCurrent = errors.New("question is not the current question")
	// ErrAlreadyAnswered rejects a second answer from a player to one question.
	ErrAlreadyAnswered = errors.New("player already answered this question")
)

// IsNotFound reports whether err signals an absent entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrPlayerNotFound)
}

// IsConflict reports whether err is a state conflict rather than bad input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSessionNotJoinable) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrNoPlayers) ||
		errors.Is(err, ErrNoQuestions) ||
		errors.Is(err, ErrQuestionNotCurrent) ||
		errors.Is(err, ErrAlreadyAnswered)
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level details for malformed input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}
