package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/presenter"
)

type scriptedFetch struct {
	mu     sync.Mutex
	states []presenter.Snapshot
	calls  int
	active int
	maxAct int
}

func (s *scriptedFetch) fetch(ctx context.Context) (presenter.Snapshot, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxAct {
		s.maxAct = s.active
	}
	i := s.calls
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	s.calls++
	snap := s.states[i]
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return snap, nil
}

func snapshot(status domain.SessionStatus, index int, scores ...int) presenter.Snapshot {
	players := make([]domain.Player, 0, len(scores))
	for i, score := range scores {
		players = append(players, domain.Player{ID: string(rune('a' + i)), Name: "p", Score: score})
	}
	return presenter.Snapshot{
		Session:        domain.QuizSession{ID: "s1", Status: status, CurrentQuestionIndex: index},
		TotalQuestions: 2,
		Players:        players,
	}
}

func TestPollerEmitsOnlyChanges(t *testing.T) {
	src := &scriptedFetch{states: []presenter.Snapshot{
		snapshot(domain.StatusWaiting, 0, 0),
		snapshot(domain.StatusWaiting, 0, 0),
		snapshot(domain.StatusActive, 0, 0),
		snapshot(domain.StatusActive, 0, 100),
		snapshot(domain.StatusActive, 0, 100),
		snapshot(domain.StatusCompleted, 0, 100),
	}}
	p := New(src.fetch, time.Millisecond)

	var seen []presenter.Snapshot
	err := p.Run(context.Background(), func(s presenter.Snapshot) error {
		seen = append(seen, s)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct snapshots, got %d", len(seen))
	}
	if seen[3].Session.Status != domain.StatusCompleted {
		t.Fatalf("expected to stop after completion, last %+v", seen[3].Session)
	}
	if src.maxAct != 1 {
		t.Fatalf("expected fetches not to overlap, saw %d at once", src.maxAct)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	src := &scriptedFetch{states: []presenter.Snapshot{snapshot(domain.StatusWaiting, 0)}}
	p := New(src.fetch, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(presenter.Snapshot) error { return nil })
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls < 2 {
		t.Fatalf("expected repeated fetches, got %d", src.calls)
	}
}

func TestPollerReportsErrorsAndContinues(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (presenter.Snapshot, error) {
		calls++
		if calls == 1 {
			return presenter.Snapshot{}, errors.New("connection refused")
		}
		return snapshot(domain.StatusCompleted, 1), nil
	}
	p := New(fetch, time.Millisecond)
	var errs []error
	p.OnError = func(err error) { errs = append(errs, err) }

	emitted := 0
	if err := p.Run(context.Background(), func(presenter.Snapshot) error { emitted++; return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(errs) != 1 || emitted != 1 {
		t.Fatalf("expected one error then one snapshot, got errs=%d emitted=%d", len(errs), emitted)
	}
}

func TestPollerEndsOnNotFound(t *testing.T) {
	fetch := func(ctx context.Context) (presenter.Snapshot, error) {
		return presenter.Snapshot{}, domain.ErrSessionNotFound
	}
	err := New(fetch, time.Millisecond).Run(context.Background(), func(presenter.Snapshot) error { return nil })
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestPollerEmitStop(t *testing.T) {
	src := &scriptedFetch{states: []presenter.Snapshot{snapshot(domain.StatusActive, 0)}}
	err := New(src.fetch, time.Millisecond).Run(context.Background(), func(presenter.Snapshot) error { return ErrStop })
	if err != nil {
		t.Fatalf("expected nil on ErrStop, got %v", err)
	}
}
