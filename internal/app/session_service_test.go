package app_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func openSession(t *testing.T, service *app.QuizService, quizID string) domain.QuizSession {
	t.Helper()
	session, err := service.CreateSession(context.Background(), domain.NewSession{QuizID: quizID})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func join(t *testing.T, service *app.QuizService, sessionID, name string) domain.Player {
	t.Helper()
	p, err := service.JoinSession(context.Background(), sessionID, domain.NewPlayer{Name: name})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return p
}

func intp(i int) *int { return &i }

func statusp(s domain.SessionStatus) *domain.SessionStatus { return &s }

func TestCreateSessionStartsWaiting(t *testing.T) {
	service, _ := newTestService(t, app.WithPinGenerator(app.RandomPins()))
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())

	session := openSession(t, service, quiz.ID)
	if session.Status != domain.StatusWaiting || session.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected new session %+v", session)
	}
	if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(session.Pin) {
		t.Fatalf("expected 6 digit pin, got %q", session.Pin)
	}
	if session.StartedAt != nil || session.EndedAt != nil {
		t.Fatalf("expected no timestamps, got %+v", session)
	}

	byPin, err := service.GetSessionByPin(context.Background(), session.Pin)
	if err != nil || byPin.ID != session.ID {
		t.Fatalf("lookup by pin: %+v %v", byPin, err)
	}
}

func TestCreateSessionRequiresQuiz(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.CreateSession(context.Background(), domain.NewSession{QuizID: "missing"})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	_, err = service.CreateSession(context.Background(), domain.NewSession{})
	if _, ok := fieldErrors(t, err)["quizId"]; !ok {
		t.Fatalf("expected quizId validation error, got %v", err)
	}
}

func TestCreateSessionSkipsTakenPins(t *testing.T) {
	pins := []string{"111111", "111111", "222222"}
	next := func() string {
		pin := pins[0]
		pins = pins[1:]
		return pin
	}
	service, _ := newTestService(t, app.WithPinGenerator(next))
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())

	first := openSession(t, service, quiz.ID)
	second := openSession(t, service, quiz.ID)
	if first.Pin != "111111" || second.Pin != "222222" {
		t.Fatalf("expected distinct pins 111111 and 222222, got %s and %s", first.Pin, second.Pin)
	}
}

func TestCreateSessionPinExhausted(t *testing.T) {
	service, _ := newTestService(t, app.WithPinGenerator(func() string { return "999999" }))
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())

	openSession(t, service, quiz.ID)
	_, err := service.CreateSession(context.Background(), domain.NewSession{QuizID: quiz.ID})
	if !errors.Is(err, domain.ErrPinExhausted) {
		t.Fatalf("expected pin exhausted, got %v", err)
	}
}

func TestGetSessionByPin(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.GetSessionByPin(ctx, "12ab56"); err == nil {
		t.Fatalf("expected malformed pin to be rejected")
	}
	if _, err := service.GetSessionByPin(ctx, "000000"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestJoinSameNameTwice(t *testing.T) {
	service, _ := newTestService(t)
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)

	first := join(t, service, session.ID, "Ann")
	second := join(t, service, session.ID, "  Ann ")
	if first.ID == second.ID {
		t.Fatalf("expected distinct player ids")
	}
	if first.Score != 0 || second.Score != 0 || second.Name != "Ann" {
		t.Fatalf("unexpected players %+v %+v", first, second)
	}

	players, err := service.ListSessionPlayers(context.Background(), session.ID)
	if err != nil || len(players) != 2 {
		t.Fatalf("expected 2 players, got %d %v", len(players), err)
	}
}

func TestJoinValidation(t *testing.T) {
	service, _ := newTestService(t)
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	ctx := context.Background()

	_, err := service.JoinSession(ctx, session.ID, domain.NewPlayer{Name: "   "})
	if fields := fieldErrors(t, err); fields["name"] != "is required" {
		t.Fatalf("expected name required, got %+v", fields)
	}
	_, err = service.JoinSession(ctx, session.ID, domain.NewPlayer{Name: "a name far beyond twenty"})
	if _, ok := fieldErrors(t, err)["name"]; !ok {
		t.Fatalf("expected long name rejected, got %v", err)
	}
	if _, err := service.JoinSession(ctx, "missing", domain.NewPlayer{Name: "Ann"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestJoinOnlyWhileWaiting(t *testing.T) {
	service, _ := newTestService(t)
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	join(t, service, session.ID, "Ann")

	if _, err := service.Start(context.Background(), session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := service.JoinSession(context.Background(), session.ID, domain.NewPlayer{Name: "Late"})
	if !errors.Is(err, domain.ErrSessionNotJoinable) {
		t.Fatalf("expected not joinable, got %v", err)
	}
}

func TestStartGuards(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	empty := mustCreateQuiz(t, service, domain.NewQuiz{Title: "Empty"})
	emptySession := openSession(t, service, empty.ID)
	join(t, service, emptySession.ID, "Ann")
	if _, err := service.Start(ctx, emptySession.ID); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}

	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	if _, err := service.Start(ctx, session.ID); !errors.Is(err, domain.ErrNoPlayers) {
		t.Fatalf("expected no players, got %v", err)
	}

	join(t, service, session.ID, "Ann")
	started, err := service.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.StatusActive || started.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected started session %+v", started)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(testNow) {
		t.Fatalf("expected startedAt from clock, got %v", started.StartedAt)
	}

	// Starting again is a no-op.
	again, err := service.Start(ctx, session.ID)
	if err != nil || again.Status != domain.StatusActive {
		t.Fatalf("expected repeated start to be a no-op, got %+v %v", again, err)
	}
}

func TestUpdateSessionTransitions(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	join(t, service, session.ID, "Ann")

	if _, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{Status: statusp(domain.StatusCompleted)}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected waiting -> completed rejected, got %v", err)
	}
	if _, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{CurrentQuestionIndex: intp(1)}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected index move while waiting rejected, got %v", err)
	}
	if _, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{Status: statusp("paused")}); err == nil {
		t.Fatalf("expected unknown status rejected")
	}

	active, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{Status: statusp(domain.StatusActive)})
	if err != nil || active.Status != domain.StatusActive {
		t.Fatalf("activate: %+v %v", active, err)
	}
	if _, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{CurrentQuestionIndex: intp(5)}); err == nil {
		t.Fatalf("expected out of range index rejected")
	}
	moved, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{CurrentQuestionIndex: intp(1)})
	if err != nil || moved.CurrentQuestionIndex != 1 {
		t.Fatalf("move index: %+v %v", moved, err)
	}

	ended := testNow.Add(time.Minute)
	done, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{Status: statusp(domain.StatusCompleted), EndedAt: &ended})
	if err != nil || done.Status != domain.StatusCompleted {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if done.EndedAt == nil || !done.EndedAt.Equal(ended) {
		t.Fatalf("expected endedAt %v, got %v", ended, done.EndedAt)
	}
	if _, err := service.UpdateSession(ctx, session.ID, domain.SessionPatch{Status: statusp(domain.StatusActive)}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected completed -> active rejected, got %v", err)
	}
	if _, err := service.UpdateSession(ctx, "missing", domain.SessionPatch{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestAdvanceCompletesAndIsIdempotent(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	join(t, service, session.ID, "Ann")

	if _, err := service.Advance(ctx, session.ID, nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected advancing a waiting session rejected, got %v", err)
	}
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	s1, err := service.Advance(ctx, session.ID, intp(0))
	if err != nil || s1.CurrentQuestionIndex != 1 || s1.Status != domain.StatusActive {
		t.Fatalf("advance to 1: %+v %v", s1, err)
	}
	// A second advance from 0 arrives late and must not skip question 2.
	stale, err := service.Advance(ctx, session.ID, intp(0))
	if err != nil || stale.CurrentQuestionIndex != 1 {
		t.Fatalf("expected stale advance ignored, got %+v %v", stale, err)
	}

	done, err := service.Advance(ctx, session.ID, intp(1))
	if err != nil || done.Status != domain.StatusCompleted {
		t.Fatalf("advance past last: %+v %v", done, err)
	}
	if done.EndedAt == nil {
		t.Fatalf("expected endedAt set")
	}

	again, err := service.Advance(ctx, session.ID, intp(1))
	if err != nil || again.Status != domain.StatusCompleted || !again.EndedAt.Equal(*done.EndedAt) {
		t.Fatalf("expected repeated advance to be a no-op, got %+v %v", again, err)
	}
	stored, _ := store.GetSession(ctx, session.ID)
	if stored.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index to stay on the last question, got %d", stored.CurrentQuestionIndex)
	}
}

func TestScheduleAdvanceFiresOnce(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	join(t, service, session.ID, "Ann")
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two hosts schedule the same advance; only one may apply.
	for i := 0; i < 2; i++ {
		if _, err := service.ScheduleAdvance(ctx, session.ID, intp(0), 20*time.Millisecond); err != nil {
			t.Fatalf("schedule advance: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := service.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if got.CurrentQuestionIndex == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduled advance did not fire, session %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	got, _ := service.GetSession(ctx, session.ID)
	if got.Status != domain.StatusActive || got.CurrentQuestionIndex != 1 {
		t.Fatalf("expected a single advance, got %+v", got)
	}
}

func TestScheduleAdvanceRejectsWaiting(t *testing.T) {
	service, _ := newTestService(t)
	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	session := openSession(t, service, quiz.ID)
	_, err := service.ScheduleAdvance(context.Background(), session.ID, nil, time.Millisecond)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := service.ScheduleAdvance(context.Background(), "missing", nil, 0); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestServiceWithoutQuizCache(t *testing.T) {
	store := memory.NewStore()
	service := app.NewQuizService(store, nil, memory.NewPinIndex())
	defer service.Close()

	quiz := mustCreateQuiz(t, service, twoQuestionQuiz())
	got, err := service.GetQuiz(context.Background(), quiz.ID)
	if err != nil || len(got.Questions) != 2 {
		t.Fatalf("expected quiz read from store, got %+v %v", got, err)
	}
}
