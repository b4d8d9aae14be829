package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"livequiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Records are kept by
// value in insertion order; every read returns copies.
type Store struct {
	mu        sync.RWMutex
	quizzes   []domain.Quiz
	questions []domain.Question
	sessions  []domain.QuizSession
	players   []domain.Player
	responses []domain.PlayerResponse
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes = append(s.quizzes, quiz)
	return quiz, nil
}

func (s *Store) CreateQuizWithQuestions(_ context.Context, quiz domain.Quiz, questions []domain.Question) (domain.QuizWithQuestions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quizIndex(quiz.ID) >= 0 {
		return domain.QuizWithQuestions{}, fmt.Errorf("quiz %s already exists", quiz.ID)
	}
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if seen[q.ID] || s.questionIndex(q.ID) >= 0 {
			return domain.QuizWithQuestions{}, fmt.Errorf("question %s already exists", q.ID)
		}
		seen[q.ID] = true
	}

	s.quizzes = append(s.quizzes, quiz)
	out := domain.QuizWithQuestions{Quiz: quiz, Questions: make([]domain.Question, 0, len(questions))}
	for _, q := range questions {
		q.QuizID = quiz.ID
		s.questions = append(s.questions, q)
		out.Questions = append(out.Questions, q)
	}
	return out, nil
}

func (s *Store) GetQuiz(_ context.Context, id string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.quizIndex(id); i >= 0 {
		return s.quizzes[i], nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Quiz{}, s.quizzes...), nil
}

func (s *Store) GetQuizWithQuestions(_ context.Context, id string) (domain.QuizWithQuestions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.quizIndex(id)
	if i < 0 {
		return domain.QuizWithQuestions{}, domain.ErrQuizNotFound
	}
	return domain.QuizWithQuestions{Quiz: s.quizzes[i], Questions: s.questionsOf(id)}, nil
}

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quizIndex(question.QuizID) < 0 {
		return domain.Question{}, domain.ErrQuizNotFound
	}
	s.questions = append(s.questions, question)
	return question, nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.questionIndex(id); i >= 0 {
		return s.questions[i], nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (s *Store) ListQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionsOf(quizID), nil
}

func (s *Store) CreateSession(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.Pin == session.Pin {
			return domain.QuizSession{}, domain.ErrPinTaken
		}
	}
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.sessionIndex(id); i >= 0 {
		return s.sessions[i], nil
	}
	return domain.QuizSession{}, domain.ErrSessionNotFound
}

func (s *Store) GetSessionByPin(_ context.Context, pin string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.Pin == pin {
			return session, nil
		}
	}
	return domain.QuizSession{}, domain.ErrSessionNotFound
}

func (s *Store) UpdateSession(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.sessionIndex(session.ID)
	if i < 0 {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	s.sessions[i] = session
	return session, nil
}

func (s *Store) CreatePlayer(_ context.Context, player domain.Player) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionIndex(player.SessionID) < 0 {
		return domain.Player{}, domain.ErrSessionNotFound
	}
	s.players = append(s.players, player)
	return player, nil
}

func (s *Store) GetPlayer(_ context.Context, id string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.playerIndex(id); i >= 0 {
		return s.players[i], nil
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

// ListSessionPlayers sorts stably, so equal scores keep join order.
func (s *Store) ListSessionPlayers(_ context.Context, sessionID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Player{}
	for _, p := range s.players {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Store) UpdatePlayerScore(_ context.Context, id string, score int) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.playerIndex(id)
	if i < 0 {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	s.players[i].Score = score
	return s.players[i], nil
}

func (s *Store) AddPlayerScore(_ context.Context, id string, delta int) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.playerIndex(id)
	if i < 0 {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	s.players[i].Score += delta
	return s.players[i], nil
}

func (s *Store) CreateResponse(_ context.Context, response domain.PlayerResponse) (domain.PlayerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, response)
	return response, nil
}

func (s *Store) HasResponse(_ context.Context, playerID, questionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.PlayerID == playerID && r.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListPlayerResponses(_ context.Context, playerID string) ([]domain.PlayerResponse, error) {
	return s.filterResponses(func(r domain.PlayerResponse) bool { return r.PlayerID == playerID }), nil
}

func (s *Store) ListQuestionResponses(_ context.Context, questionID string) ([]domain.PlayerResponse, error) {
	return s.filterResponses(func(r domain.PlayerResponse) bool { return r.QuestionID == questionID }), nil
}

func (s *Store) filterResponses(keep func(domain.PlayerResponse) bool) []domain.PlayerResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.PlayerResponse{}
	for _, r := range s.responses {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// questionsOf must be called with the lock held.
func (s *Store) questionsOf(quizID string) []domain.Question {
	out := []domain.Question{}
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *Store) quizIndex(id string) int {
	for i := range s.quizzes {
		if s.quizzes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) questionIndex(id string) int {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sessionIndex(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) playerIndex(id string) int {
	for i := range s.players {
		if s.players[i].ID == id {
			return i
		}
	}
	return -1
}
