package app

import (
	"context"

	"livequiz-service/internal/presenter"
)

// Snapshot reads a session, its quiz and players and derives the view state.
func (s *QuizService) Snapshot(ctx context.Context, sessionID string) (presenter.Snapshot, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	quiz, err := s.quizzes.GetQuizWithQuestions(ctx, session.QuizID)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	players, err := s.store.ListSessionPlayers(ctx, sessionID)
	if err != nil {
		return presenter.Snapshot{}, err
	}
	return presenter.Build(session, quiz, players), nil
}
