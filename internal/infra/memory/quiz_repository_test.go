package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuizLoader: seededStore(t)}
	repo := NewQuizRepository(loader, time.Minute)

	quiz, err := repo.GetQuizWithQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuizWithQuestions(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryInvalidateReloads(t *testing.T) {
	loader := &countingLoader{QuizLoader: seededStore(t)}
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	_, _ = repo.GetQuizWithQuestions(ctx, "quiz-1")
	repo.Invalidate(ctx, "quiz-1")
	_, _ = repo.GetQuizWithQuestions(ctx, "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryInvalidateDuringLoad(t *testing.T) {
	store := seededStore(t)
	loader := newBlockingLoader(store)
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	done := make(chan domain.QuizWithQuestions)
	go func() {
		quiz, _ := repo.GetQuizWithQuestions(ctx, "quiz-1")
		done <- quiz
	}()
	<-loader.started

	if _, err := store.CreateQuestion(ctx, domain.Question{
		ID: "q3", QuizID: "quiz-1", QuestionText: "4 + 4?", OptionA: "8", OptionB: "9", CorrectAnswer: "A", Order: 3,
	}); err != nil {
		t.Fatalf("create question: %v", err)
	}
	repo.Invalidate(ctx, "quiz-1")
	close(loader.release)

	if stale := <-done; len(stale.Questions) != 2 {
		t.Fatalf("expected the in-flight load to see 2 questions, got %d", len(stale.Questions))
	}

	quiz, err := repo.GetQuizWithQuestions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 3 {
		t.Fatalf("expected 3 questions after invalidate, got %d", len(quiz.Questions))
	}
	if calls := loader.count(); calls != 2 {
		t.Fatalf("expected a reload after invalidate, loader calls %d", calls)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: seededStore(t)}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }
	ctx := context.Background()

	_, _ = repo.GetQuizWithQuestions(ctx, "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuizWithQuestions(ctx, "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryDoesNotCacheMisses(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStore()}
	repo := NewQuizRepository(loader, time.Minute)

	_, err := repo.GetQuizWithQuestions(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	_, _ = repo.GetQuizWithQuestions(context.Background(), "missing")
	if loader.calls != 2 {
		t.Fatalf("expected misses to reach the loader, calls %d", loader.calls)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error) {
	l.calls++
	return l.QuizLoader.GetQuizWithQuestions(ctx, quizID)
}

// blockingLoader holds its first load until release is closed.
type blockingLoader struct {
	QuizLoader
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newBlockingLoader(inner QuizLoader) *blockingLoader {
	return &blockingLoader{
		QuizLoader: inner,
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (l *blockingLoader) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.QuizWithQuestions, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()

	quiz, err := l.QuizLoader.GetQuizWithQuestions(ctx, quizID)
	if first {
		close(l.started)
		<-l.release
	}
	return quiz, err
}

func (l *blockingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	if _, err := store.CreateQuiz(ctx, domain.Quiz{ID: "quiz-1", Title: "Arithmetic", TimePerQuestion: 30}); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	for _, q := range []domain.Question{
		{ID: "q2", QuizID: "quiz-1", QuestionText: "3 + 3?", OptionA: "6", OptionB: "7", CorrectAnswer: "A", Order: 2},
		{ID: "q1", QuizID: "quiz-1", QuestionText: "2 + 2?", OptionA: "3", OptionB: "4", CorrectAnswer: "B", Order: 1},
	} {
		if _, err := store.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}
	return store
}
