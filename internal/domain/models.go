package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Answer keys accepted for multiple-choice questions.
const (
	AnswerA = "A"
	AnswerB = "B"
	AnswerC = "C"
	AnswerD = "D"
)

// DefaultTimePerQuestion is used when a quiz is created without a timer.
const DefaultTimePerQuestion = 30

// Quiz is the question set a host runs sessions of.
type Quiz struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	TimePerQuestion int       `json:"timePerQuestion"` // seconds
	CreatedBy       *string   `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Question models an MCQ question. OptionC and OptionD are optional; when
// absent only two choices are offered.
type Question struct {
	ID            string  `json:"id"`
	QuizID        string  `json:"quizId"`
	QuestionText  string  `json:"questionText"`
	OptionA       string  `json:"optionA"`
	OptionB       string  `json:"optionB"`
	OptionC       *string `json:"optionC"`
	OptionD       *string `json:"optionD"`
	CorrectAnswer string  `json:"correctAnswer"`
	Order         int     `json:"order"` // 1-based
}

// Offers reports whether key names one of the options the question shows.
func (q Question) Offers(key string) bool {
	switch key {
	case AnswerA, AnswerB:
		return true
	case AnswerC:
		return q.OptionC != nil
	case AnswerD:
		return q.OptionD != nil
	}
	return false
}

// QuizWithQuestions is a quiz joined with its questions in presentation order.
type QuizWithQuestions struct {
	Quiz
	Questions []Question `json:"questions"`
}

// QuizSession is one play-through of a quiz.
type QuizSession struct {
	ID                   string        `json:"id"`
	QuizID               string        `json:"quizId"`
	Pin                  string        `json:"pin"`
	HostID               *string       `json:"hostId"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	StartedAt            *time.Time    `json:"startedAt"`
	EndedAt              *time.Time    `json:"endedAt"`
}

// Player is a participant of a session and their accumulated score.
type Player struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// PlayerResponse is one entry of the append-only answer log.
type PlayerResponse struct {
	ID             string    `json:"id"`
	PlayerID       string    `json:"playerId"`
	QuestionID     string    `json:"questionId"`
	SelectedAnswer *string   `json:"selectedAnswer"`
	IsCorrect      bool      `json:"isCorrect"`
	ResponseTime   *int      `json:"responseTime"` // milliseconds
	SubmittedAt    time.Time `json:"submittedAt"`
}

// NewQuiz is the input for creating a quiz, optionally with its questions.
type NewQuiz struct {
	Title           string        `json:"title" validate:"required,max=200"`
	Description     *string       `json:"description"`
	TimePerQuestion int           `json:"timePerQuestion" validate:"omitempty,min=5,max=120"`
	CreatedBy       *string       `json:"createdBy"`
	Questions       []NewQuestion `json:"questions" validate:"omitempty,dive"`
}

// NewQuestion is the input for appending a question to a quiz.
type NewQuestion struct {
	QuestionText  string  `json:"questionText" validate:"required"`
	OptionA       string  `json:"optionA" validate:"required"`
	OptionB       string  `json:"optionB" validate:"required"`
	OptionC       *string `json:"optionC"`
	OptionD       *string `json:"optionD"`
	CorrectAnswer string  `json:"correctAnswer" validate:"required,oneof=A B C D"`
	Order         int     `json:"order" validate:"min=0"`
}

// NewSession is the input for opening a session.
type NewSession struct {
	QuizID string  `json:"quizId" validate:"required"`
	HostID *string `json:"hostId"`
}

// NewPlayer is the input for joining a session.
type NewPlayer struct {
	Name string `json:"name" validate:"required,max=20"`
}

// NewResponse is the raw response log input.
type NewResponse struct {
	PlayerID       string  `json:"playerId" validate:"required"`
	QuestionID     string  `json:"questionId" validate:"required"`
	SelectedAnswer *string `json:"selectedAnswer" validate:"omitempty,oneof=A B C D"`
	IsCorrect      bool    `json:"isCorrect"`
	ResponseTime   *int    `json:"responseTime" validate:"omitempty,min=0"`
}

// AnswerSubmission is a player's answer to the current question.
// RemainingSeconds is read from the client's countdown.
type AnswerSubmission struct {
	QuestionID       string  `json:"questionId" validate:"required"`
	SelectedAnswer   string  `json:"selectedAnswer" validate:"required,oneof=A B C D"`
	RemainingSeconds float64 `json:"remainingSeconds" validate:"min=0"`
}

// AnswerResult summarizes a recorded answer.
type AnswerResult struct {
	Response PlayerResponse `json:"response"`
	Player   Player         `json:"player"`
	Awarded  int            `json:"awarded"`
}

// SessionPatch is a partial session update. Nil fields are left unchanged.
type SessionPatch struct {
	Status               *SessionStatus `json:"status"`
	CurrentQuestionIndex *int           `json:"currentQuestionIndex"`
	StartedAt            *time.Time     `json:"startedAt"`
	EndedAt              *time.Time     `json:"endedAt"`
}
