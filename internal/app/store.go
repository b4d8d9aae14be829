package app

import (
	"context"

	"livequiz-service/internal/domain"
)

// Store abstracts entity persistence (in-memory, SQLite, Postgres).
// Lookups of absent entities return the matching domain not-found error.
type Store interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	// CreateQuizWithQuestions stores a quiz and its questions together; on
	// error none of them is stored.
	CreateQuizWithQuestions(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.QuizWithQuestions, error)
	GetQuiz(ctx context.Context, id string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	// GetQuizWithQuestions joins a quiz with its questions ordered by Order.
	GetQuizWithQuestions(ctx context.Context, id string) (domain.QuizWithQuestions, error)

	CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error)

	// CreateSession returns domain.ErrPinTaken when the pin is already used.
	CreateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)
	GetSession(ctx context.Context, id string) (domain.QuizSession, error)
	GetSessionByPin(ctx context.Context, pin string) (domain.QuizSession, error)
	// UpdateSession replaces the stored record with session.
	UpdateSession(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)

	CreatePlayer(ctx context.Context, player domain.Player) (domain.Player, error)
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	// ListSessionPlayers orders by score descending, then join order.
	ListSessionPlayers(ctx context.Context, sessionID string) ([]domain.Player, error)
	UpdatePlayerScore(ctx context.Context, id string, score int) (domain.Player, error)
	AddPlayerScore(ctx context.Context, id string, delta int) (domain.Player, error)

	CreateResponse(ctx context.Context, response domain.PlayerResponse) (domain.PlayerResponse, error)
	HasResponse(ctx context.Context, playerID, questionID string) (bool, error)
	ListPlayerResponses(ctx context.Context, playerID string) ([]domain.PlayerResponse, error)
	ListQuestionResponses(ctx context.Context, questionID string) ([]domain.PlayerResponse, error)
}

// QuizRepository serves quiz content, usually from a cache in front of the Store.
type QuizRepository interface {
	GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error)
	Invalidate(ctx context.Context, quizID string)
}

// PinIndex maps live pins to session ids and reserves pins so two sessions
// never share one.
type PinIndex interface {
	// Reserve claims pin for sessionID and reports false when it is taken.
	Reserve(ctx context.Context, pin, sessionID string) (bool, error)
	Lookup(ctx context.Context, pin string) (string, bool, error)
	// Release frees pin only if it is still held by sessionID.
	Release(ctx context.Context, pin, sessionID string) error
}

// storeQuizzes reads quizzes straight from the Store when no cache is configured.
type storeQuizzes struct {
	store Store
}

func (s storeQuizzes) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error) {
	return s.store.GetQuizWithQuestions(ctx, quizID)
}

func (storeQuizzes) Invalidate(context.Context, string) {}
