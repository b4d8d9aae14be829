// Package storetest holds the behaviour every app.Store driver must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// Run exercises a Store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) app.Store) {
	t.Run("QuizWithOrderedQuestions", func(t *testing.T) { testQuizWithQuestions(t, newStore(t)) })
	t.Run("QuizzesInCreationOrder", func(t *testing.T) { testQuizOrder(t, newStore(t)) })
	t.Run("QuizWithQuestionsTogether", func(t *testing.T) { testQuizWithQuestionsTogether(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("SessionPinUnique", func(t *testing.T) { testSessionPins(t, newStore(t)) })
	t.Run("SessionUpdate", func(t *testing.T) { testSessionUpdate(t, newStore(t)) })
	t.Run("PlayersLeaderboardOrder", func(t *testing.T) { testPlayerOrder(t, newStore(t)) })
	t.Run("Responses", func(t *testing.T) { testResponses(t, newStore(t)) })
}

var base = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func seedQuiz(t *testing.T, s app.Store) domain.Quiz {
	t.Helper()
	ctx := context.Background()
	quiz, err := s.CreateQuiz(ctx, domain.Quiz{
		ID:              "quiz-1",
		Title:           "Capitals",
		Description:     strp("European capitals"),
		TimePerQuestion: 30,
		CreatedAt:       base,
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	for _, q := range []domain.Question{
		{ID: "q3", QuizID: quiz.ID, QuestionText: "Capital of Spain?", OptionA: "Madrid", OptionB: "Lisbon", CorrectAnswer: "A", Order: 3},
		{ID: "q1", QuizID: quiz.ID, QuestionText: "Capital of France?", OptionA: "Rome", OptionB: "Paris", OptionC: strp("Nice"), CorrectAnswer: "B", Order: 1},
		{ID: "q2", QuizID: quiz.ID, QuestionText: "Capital of Italy?", OptionA: "Rome", OptionB: "Milan", OptionC: strp("Turin"), OptionD: strp("Naples"), CorrectAnswer: "A", Order: 2},
	} {
		if _, err := s.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question %s: %v", q.ID, err)
		}
	}
	return quiz
}

func seedSession(t *testing.T, s app.Store, id, pin string) domain.QuizSession {
	t.Helper()
	session, err := s.CreateSession(context.Background(), domain.QuizSession{
		ID: id, QuizID: "quiz-1", Pin: pin, Status: domain.StatusWaiting,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func seedPlayer(t *testing.T, s app.Store, id, sessionID, name string, joined time.Time) domain.Player {
	t.Helper()
	p, err := s.CreatePlayer(context.Background(), domain.Player{ID: id, SessionID: sessionID, Name: name, JoinedAt: joined})
	if err != nil {
		t.Fatalf("create player %s: %v", id, err)
	}
	return p
}

func testQuizWithQuestions(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedQuiz(t, s)

	quiz, err := s.GetQuizWithQuestions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(quiz.Questions))
	}
	for i, want := range []string{"q1", "q2", "q3"} {
		if quiz.Questions[i].ID != want {
			t.Fatalf("question %d: expected %s, got %s", i, want, quiz.Questions[i].ID)
		}
	}
	if quiz.Description == nil || *quiz.Description != "European capitals" {
		t.Fatalf("expected description round trip, got %v", quiz.Description)
	}
	if !quiz.CreatedAt.Equal(base) {
		t.Fatalf("expected createdAt %v, got %v", base, quiz.CreatedAt)
	}
	q2 := quiz.Questions[1]
	if q2.OptionD == nil || *q2.OptionD != "Naples" {
		t.Fatalf("expected optionD round trip, got %v", q2.OptionD)
	}
	if quiz.Questions[2].OptionC != nil {
		t.Fatalf("expected optionC absent on q3")
	}

	got, err := s.GetQuestion(ctx, "q2")
	if err != nil || got.QuestionText != "Capital of Italy?" {
		t.Fatalf("get question: %+v %v", got, err)
	}

	quizzes, err := s.ListQuizzes(ctx)
	if err != nil || len(quizzes) != 1 {
		t.Fatalf("list quizzes: %d %v", len(quizzes), err)
	}
}

func testQuizOrder(t *testing.T, s app.Store) {
	ctx := context.Background()
	for _, id := range []string{"quiz-c", "quiz-a", "quiz-b"} {
		if _, err := s.CreateQuiz(ctx, domain.Quiz{ID: id, Title: id, TimePerQuestion: 30, CreatedAt: base}); err != nil {
			t.Fatalf("create quiz %s: %v", id, err)
		}
	}
	quizzes, err := s.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != 3 {
		t.Fatalf("expected 3 quizzes, got %d", len(quizzes))
	}
	for i, want := range []string{"quiz-c", "quiz-a", "quiz-b"} {
		if quizzes[i].ID != want {
			t.Fatalf("quiz %d: expected %s, got %s", i, want, quizzes[i].ID)
		}
	}
}

func testQuizWithQuestionsTogether(t *testing.T, s app.Store) {
	ctx := context.Background()
	quiz := domain.Quiz{ID: "quiz-1", Title: "Capitals", TimePerQuestion: 30, CreatedAt: base}

	_, err := s.CreateQuizWithQuestions(ctx, quiz, []domain.Question{
		{ID: "dup", QuestionText: "Capital of France?", OptionA: "Rome", OptionB: "Paris", CorrectAnswer: "B", Order: 1},
		{ID: "dup", QuestionText: "Capital of Italy?", OptionA: "Rome", OptionB: "Milan", CorrectAnswer: "A", Order: 2},
	})
	if err == nil {
		t.Fatalf("expected duplicate question id to fail")
	}
	if _, err := s.GetQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected no quiz stored after failure, got %v", err)
	}
	if _, err := s.GetQuestion(ctx, "dup"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected no question stored after failure, got %v", err)
	}

	created, err := s.CreateQuizWithQuestions(ctx, quiz, []domain.Question{
		{ID: "q2", QuestionText: "Capital of Italy?", OptionA: "Rome", OptionB: "Milan", CorrectAnswer: "A", Order: 2},
		{ID: "q1", QuestionText: "Capital of France?", OptionA: "Rome", OptionB: "Paris", CorrectAnswer: "B", Order: 1},
	})
	if err != nil {
		t.Fatalf("create quiz with questions: %v", err)
	}
	if len(created.Questions) != 2 || created.Questions[0].QuizID != "quiz-1" {
		t.Fatalf("unexpected created quiz %+v", created)
	}
	got, err := s.GetQuizWithQuestions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(got.Questions) != 2 || got.Questions[0].ID != "q1" || got.Questions[1].ID != "q2" {
		t.Fatalf("expected q1, q2 in order, got %+v", got.Questions)
	}
}

func testNotFound(t *testing.T, s app.Store) {
	ctx := context.Background()
	if _, err := s.GetQuiz(ctx, "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("quiz: expected not found, got %v", err)
	}
	if _, err := s.GetQuizWithQuestions(ctx, "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("quiz with questions: expected not found, got %v", err)
	}
	if _, err := s.GetQuestion(ctx, "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("question: expected not found, got %v", err)
	}
	if _, err := s.GetSession(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("session: expected not found, got %v", err)
	}
	if _, err := s.GetSessionByPin(ctx, "000000"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("session by pin: expected not found, got %v", err)
	}
	if _, err := s.UpdateSession(ctx, domain.QuizSession{ID: "nope", Status: domain.StatusActive}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("update session: expected not found, got %v", err)
	}
	if _, err := s.GetPlayer(ctx, "nope"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("player: expected not found, got %v", err)
	}
	if _, err := s.UpdatePlayerScore(ctx, "nope", 10); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("update score: expected not found, got %v", err)
	}
	if _, err := s.AddPlayerScore(ctx, "nope", 10); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("add score: expected not found, got %v", err)
	}
	players, err := s.ListSessionPlayers(ctx, "nope")
	if err != nil || len(players) != 0 {
		t.Fatalf("expected no players, got %d %v", len(players), err)
	}
}

func testSessionPins(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedQuiz(t, s)
	seedSession(t, s, "s1", "482913")

	_, err := s.CreateSession(ctx, domain.QuizSession{ID: "s2", QuizID: "quiz-1", Pin: "482913", Status: domain.StatusWaiting})
	if !errors.Is(err, domain.ErrPinTaken) {
		t.Fatalf("expected pin taken, got %v", err)
	}

	got, err := s.GetSessionByPin(ctx, "482913")
	if err != nil || got.ID != "s1" {
		t.Fatalf("expected s1 by pin, got %+v %v", got, err)
	}
	if got.Status != domain.StatusWaiting || got.CurrentQuestionIndex != 0 || got.StartedAt != nil {
		t.Fatalf("unexpected fresh session %+v", got)
	}
}

func testSessionUpdate(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedQuiz(t, s)
	session := seedSession(t, s, "s1", "123456")

	started := base.Add(time.Minute)
	session.Status = domain.StatusActive
	session.StartedAt = &started
	session.CurrentQuestionIndex = 2
	if _, err := s.UpdateSession(ctx, session); err != nil {
		t.Fatalf("update session: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != domain.StatusActive || got.CurrentQuestionIndex != 2 {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Fatalf("expected startedAt %v, got %v", started, got.StartedAt)
	}
	if got.EndedAt != nil {
		t.Fatalf("expected no endedAt, got %v", got.EndedAt)
	}
}

func testPlayerOrder(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedQuiz(t, s)
	seedSession(t, s, "s1", "111111")
	seedSession(t, s, "s2", "222222")

	seedPlayer(t, s, "p1", "s1", "Ann", base)
	seedPlayer(t, s, "p2", "s1", "Bob", base.Add(time.Second))
	seedPlayer(t, s, "p3", "s1", "Ann", base.Add(2*time.Second))
	seedPlayer(t, s, "p4", "s1", "Dee", base.Add(3*time.Second))
	seedPlayer(t, s, "other", "s2", "Eve", base)

	if _, err := s.AddPlayerScore(ctx, "p3", 100); err != nil {
		t.Fatalf("add score: %v", err)
	}
	if _, err := s.AddPlayerScore(ctx, "p3", 100); err != nil {
		t.Fatalf("add score: %v", err)
	}
	p, err := s.UpdatePlayerScore(ctx, "p4", 100)
	if err != nil || p.Score != 100 {
		t.Fatalf("update score: %+v %v", p, err)
	}
	if _, err := s.UpdatePlayerScore(ctx, "p2", 100); err != nil {
		t.Fatalf("update score: %v", err)
	}

	players, err := s.ListSessionPlayers(ctx, "s1")
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	want := []string{"p3", "p2", "p4", "p1"}
	if len(players) != len(want) {
		t.Fatalf("expected %d players, got %d", len(want), len(players))
	}
	for i, id := range want {
		if players[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, id, players[i].ID, players)
		}
	}
	if players[0].Score != 200 {
		t.Fatalf("expected 200 after two increments, got %d", players[0].Score)
	}
}

func testResponses(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedQuiz(t, s)
	seedSession(t, s, "s1", "333333")
	seedPlayer(t, s, "p1", "s1", "Ann", base)

	rt := 5000
	for _, id := range []string{"r1", "r2"} {
		_, err := s.CreateResponse(ctx, domain.PlayerResponse{
			ID: id, PlayerID: "p1", QuestionID: "q1", SelectedAnswer: strp("B"),
			IsCorrect: true, ResponseTime: &rt, SubmittedAt: base,
		})
		if err != nil {
			t.Fatalf("create response %s: %v", id, err)
		}
	}

	has, err := s.HasResponse(ctx, "p1", "q1")
	if err != nil || !has {
		t.Fatalf("expected response present, got %v %v", has, err)
	}
	has, err = s.HasResponse(ctx, "p1", "q2")
	if err != nil || has {
		t.Fatalf("expected no response to q2, got %v %v", has, err)
	}

	byQuestion, err := s.ListQuestionResponses(ctx, "q1")
	if err != nil || len(byQuestion) != 2 {
		t.Fatalf("expected duplicate responses kept, got %d %v", len(byQuestion), err)
	}
	if byQuestion[0].ResponseTime == nil || *byQuestion[0].ResponseTime != 5000 {
		t.Fatalf("expected responseTime 5000, got %v", byQuestion[0].ResponseTime)
	}
	byPlayer, err := s.ListPlayerResponses(ctx, "p1")
	if err != nil || len(byPlayer) != 2 {
		t.Fatalf("expected 2 responses for player, got %d %v", len(byPlayer), err)
	}
	none, err := s.ListQuestionResponses(ctx, "q9")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %d %v", len(none), err)
	}
}
