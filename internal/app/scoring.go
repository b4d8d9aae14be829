package app

import (
	"context"
	"fmt"
	"math"

	"livequiz-service/internal/domain"
)

// SubmitAnswer records a player's answer to the current question and awards
// points for a correct one. Checking, recording and scoring run under the
// session lock, so a player can answer each question once.
//
// The response time is derived from the client's countdown
// (timePerQuestion - remaining), so it is only as trustworthy as the client.
func (s *QuizService) SubmitAnswer(ctx context.Context, playerID string, in domain.AnswerSubmission) (domain.AnswerResult, error) {
	if err := domain.Validate(in); err != nil {
		return domain.AnswerResult{}, err
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	unlock := s.locks.Lock(player.SessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, player.SessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if session.Status != domain.StatusActive {
		return domain.AnswerResult{}, domain.ErrSessionNotActive
	}
	quiz, err := s.quizzes.GetQuizWithQuestions(ctx, session.QuizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	question, err := currentQuestion(quiz, session, in.QuestionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !question.Offers(in.SelectedAnswer) {
		return domain.AnswerResult{}, domain.NewValidationError("selectedAnswer", "is not an option of this question")
	}
	answered, err := s.store.HasResponse(ctx, playerID, question.ID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if answered {
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	correct := in.SelectedAnswer == question.CorrectAnswer
	elapsed := ResponseTime(quiz.TimePerQuestion, in.RemainingSeconds)
	selected := in.SelectedAnswer
	response, err := s.store.CreateResponse(ctx, domain.PlayerResponse{
		ID:             s.newID(),
		PlayerID:       playerID,
		QuestionID:     question.ID,
		SelectedAnswer: &selected,
		IsCorrect:      correct,
		ResponseTime:   &elapsed,
		SubmittedAt:    s.now(),
	})
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("record response: %w", err)
	}

	awarded := 0
	if correct {
		awarded = s.pointsPerCorrect
		if player, err = s.store.AddPlayerScore(ctx, playerID, awarded); err != nil {
			return domain.AnswerResult{}, fmt.Errorf("award points: %w", err)
		}
	}
	return domain.AnswerResult{Response: response, Player: player, Awarded: awarded}, nil
}

// RecordResponse appends a raw response to the log without scoring it or
// checking for an earlier answer.
func (s *QuizService) RecordResponse(ctx context.Context, in domain.NewResponse) (domain.PlayerResponse, error) {
	if err := domain.Validate(in); err != nil {
		return domain.PlayerResponse{}, err
	}
	if _, err := s.store.GetPlayer(ctx, in.PlayerID); err != nil {
		return domain.PlayerResponse{}, err
	}
	if _, err := s.store.GetQuestion(ctx, in.QuestionID); err != nil {
		return domain.PlayerResponse{}, err
	}
	return s.store.CreateResponse(ctx, domain.PlayerResponse{
		ID:             s.newID(),
		PlayerID:       in.PlayerID,
		QuestionID:     in.QuestionID,
		SelectedAnswer: in.SelectedAnswer,
		IsCorrect:      in.IsCorrect,
		ResponseTime:   in.ResponseTime,
		SubmittedAt:    s.now(),
	})
}

// UpdatePlayerScore overwrites a player's score.
func (s *QuizService) UpdatePlayerScore(ctx context.Context, playerID string, score int) (domain.Player, error) {
	if score < 0 {
		return domain.Player{}, domain.NewValidationError("score", "must not be negative")
	}
	return s.store.UpdatePlayerScore(ctx, playerID, score)
}

// ListQuestionResponses returns every response recorded for a question.
func (s *QuizService) ListQuestionResponses(ctx context.Context, questionID string) ([]domain.PlayerResponse, error) {
	return s.store.ListQuestionResponses(ctx, questionID)
}

// ListPlayerResponses returns every response a player submitted.
func (s *QuizService) ListPlayerResponses(ctx context.Context, playerID string) ([]domain.PlayerResponse, error) {
	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		return nil, err
	}
	return s.store.ListPlayerResponses(ctx, playerID)
}

// ResponseTime converts the seconds left on a question's countdown into
// elapsed milliseconds, clamped to the question's time window.
func ResponseTime(timePerQuestion int, remainingSeconds float64) int {
	limit := timePerQuestion * 1000
	elapsed := limit - int(math.Round(remainingSeconds*1000))
	if elapsed < 0 {
		return 0
	}
	if elapsed > limit {
		return limit
	}
	return elapsed
}

func currentQuestion(quiz domain.QuizWithQuestions, session domain.QuizSession, questionID string) (domain.Question, error) {
	idx := session.CurrentQuestionIndex
	for i, q := range quiz.Questions {
		if q.ID != questionID {
			continue
		}
		if i != idx {
			return domain.Question{}, domain.ErrQuestionNotCurrent
		}
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
