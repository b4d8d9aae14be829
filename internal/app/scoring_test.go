package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// activeGame opens and starts a session of the two question quiz with the given players.
func activeGame(t *testing.T, service *app.QuizService, names ...string) (domain.QuizWithQuestions, domain.QuizSession, []domain.Player) {
	t.Helper()
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	players := make([]domain.Player, 0, len(names))
	for _, name := range names {
		players = append(players, join(t, service, session.ID, name))
	}
	session, err := service.Start(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return quiz, session, players
}

func TestWorkedExample(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	quiz, session, players := activeGame(t, service, "Ann")
	ann := players[0]
	if session.Pin != "482913" {
		t.Fatalf("expected pin 482913, got %s", session.Pin)
	}

	result, err := service.SubmitAnswer(ctx, ann.ID, domain.AnswerSubmission{
		QuestionID:       quiz.Questions[0].ID,
		SelectedAnswer:   "B",
		RemainingSeconds: 25,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Response.IsCorrect || *result.Response.ResponseTime != 5000 {
		t.Fatalf("expected correct answer in 5000ms, got %+v", result.Response)
	}
	if result.Awarded != 100 || result.Player.Score != 100 {
		t.Fatalf("expected 100 points, got awarded=%d score=%d", result.Awarded, result.Player.Score)
	}

	s1, err := service.Advance(ctx, session.ID, intp(0))
	if err != nil || s1.CurrentQuestionIndex != 1 {
		t.Fatalf("advance: %+v %v", s1, err)
	}
	done, err := service.Advance(ctx, session.ID, intp(1))
	if err != nil || done.Status != domain.StatusCompleted || done.EndedAt == nil {
		t.Fatalf("expected completed with endedAt, got %+v %v", done, err)
	}
}

func TestIncorrectAnswerKeepsScore(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	quiz, _, players := activeGame(t, service, "Ann")

	result, err := service.SubmitAnswer(ctx, players[0].ID, domain.AnswerSubmission{
		QuestionID: quiz.Questions[0].ID, SelectedAnswer: "A", RemainingSeconds: 10,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Response.IsCorrect || result.Awarded != 0 || result.Player.Score != 0 {
		t.Fatalf("expected no points, got %+v", result)
	}
	if *result.Response.ResponseTime != 20000 {
		t.Fatalf("expected 20000ms, got %d", *result.Response.ResponseTime)
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	quiz, _, players := activeGame(t, service, "Ann")
	ann := players[0].ID
	first, second := quiz.Questions[0], quiz.Questions[1]

	cases := []struct {
		name string
		in   domain.AnswerSubmission
		want error
	}{
		{"not current", domain.AnswerSubmission{QuestionID: second.ID, SelectedAnswer: "A"}, domain.ErrQuestionNotCurrent},
		{"unknown question", domain.AnswerSubmission{QuestionID: "nope", SelectedAnswer: "A"}, domain.ErrQuestionNotFound},
	}
	for _, tc := range cases {
		if _, err := service.SubmitAnswer(ctx, ann, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// The first question offers A to C only.
	_, err := service.SubmitAnswer(ctx, ann, domain.AnswerSubmission{QuestionID: first.ID, SelectedAnswer: "E"})
	if _, ok := fieldErrors(t, err)["selectedAnswer"]; !ok {
		t.Fatalf("expected selectedAnswer rejected, got %v", err)
	}
	_, err = service.SubmitAnswer(ctx, ann, domain.AnswerSubmission{QuestionID: first.ID, SelectedAnswer: "D"})
	if _, ok := fieldErrors(t, err)["selectedAnswer"]; !ok {
		t.Fatalf("expected option not offered rejected, got %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, "ghost", domain.AnswerSubmission{QuestionID: first.ID, SelectedAnswer: "B"}); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, ann, domain.AnswerSubmission{QuestionID: first.ID, SelectedAnswer: "B"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, ann, domain.AnswerSubmission{QuestionID: first.ID, SelectedAnswer: "B"}); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	p, _ := service.GetPlayer(ctx, ann)
	if p.Score != 100 {
		t.Fatalf("expected a single award, got %d", p.Score)
	}
}

func TestSubmitAnswerRequiresActiveSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	ann := join(t, service, session.ID, "Ann")

	_, err := service.SubmitAnswer(ctx, ann.ID, domain.AnswerSubmission{QuestionID: quiz.Questions[0].ID, SelectedAnswer: "B"})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected session not active, got %v", err)
	}
}

func TestConcurrentAnswersScoreEveryPlayer(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	names := []string{"Ann", "Bob", "Cid", "Dee", "Eve", "Fay", "Gus", "Hal"}
	quiz, session, players := activeGame(t, service, names...)

	var wg sync.WaitGroup
	for _, p := range players {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = service.SubmitAnswer(ctx, id, domain.AnswerSubmission{
					QuestionID: quiz.Questions[0].ID, SelectedAnswer: "B", RemainingSeconds: 12.5,
				})
			}(p.ID)
		}
	}
	wg.Wait()

	board, err := service.ListSessionPlayers(ctx, session.ID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, p := range board {
		if p.Score != 100 {
			t.Fatalf("expected exactly one award per player, %s has %d", p.Name, p.Score)
		}
	}
	responses, _ := service.ListQuestionResponses(ctx, quiz.Questions[0].ID)
	if len(responses) != len(names) {
		t.Fatalf("expected one response per player, got %d", len(responses))
	}
}

func TestLeaderboardOrder(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	quiz, _, players := activeGame(t, service, "Ann", "Bob", "Cid")

	// Bob answers correctly; Ann and Cid tie at zero and keep join order.
	if _, err := service.SubmitAnswer(ctx, players[1].ID, domain.AnswerSubmission{QuestionID: quiz.Questions[0].ID, SelectedAnswer: "B"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	board, err := service.ListSessionPlayers(ctx, players[0].SessionID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for i, want := range []string{"Bob", "Ann", "Cid"} {
		if board[i].Name != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, board[i].Name)
		}
	}
}

func TestRecordResponseThenUpdateScore(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	quiz, _, players := activeGame(t, service, "Ann")
	ann := players[0]
	rt := 5000

	for i := 0; i < 2; i++ {
		_, err := service.RecordResponse(ctx, domain.NewResponse{
			PlayerID: ann.ID, QuestionID: quiz.Questions[0].ID, SelectedAnswer: strp("B"), IsCorrect: true, ResponseTime: &rt,
		})
		if err != nil {
			t.Fatalf("record response: %v", err)
		}
	}
	updated, err := service.UpdatePlayerScore(ctx, ann.ID, ann.Score+100)
	if err != nil || updated.Score != 100 {
		t.Fatalf("update score: %+v %v", updated, err)
	}

	responses, err := service.ListPlayerResponses(ctx, ann.ID)
	if err != nil || len(responses) != 2 {
		t.Fatalf("expected raw log to keep both responses, got %d %v", len(responses), err)
	}

	if _, err := service.UpdatePlayerScore(ctx, ann.ID, -1); err == nil {
		t.Fatalf("expected negative score rejected")
	}
	if _, err := service.UpdatePlayerScore(ctx, "ghost", 10); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	if _, err := service.RecordResponse(ctx, domain.NewResponse{PlayerID: ann.ID, QuestionID: "nope"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := service.ListPlayerResponses(ctx, "ghost"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestResponseTime(t *testing.T) {
	cases := []struct {
		tpq       int
		remaining float64
		want      int
	}{
		{30, 25, 5000},
		{30, 0, 30000},
		{30, 30, 0},
		{30, 45, 0},
		{20, 12.3456, 7654},
	}
	for _, tc := range cases {
		if got := app.ResponseTime(tc.tpq, tc.remaining); got != tc.want {
			t.Fatalf("ResponseTime(%d, %v) = %d, want %d", tc.tpq, tc.remaining, got, tc.want)
		}
	}
}
