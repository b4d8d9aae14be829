package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"livequiz-service/internal/domain"
)

// CreateSession opens a waiting session for an existing quiz under a fresh pin.
func (s *QuizService) CreateSession(ctx context.Context, in domain.NewSession) (domain.QuizSession, error) {
	if err := domain.Validate(in); err != nil {
		return domain.QuizSession{}, err
	}
	if _, err := s.store.GetQuiz(ctx, in.QuizID); err != nil {
		return domain.QuizSession{}, err
	}

	id := s.newID()
	for attempt := 0; attempt < maxPinAttempts; attempt++ {
		pin := s.newPin()
		ok, err := s.pins.Reserve(ctx, pin, id)
		if err != nil {
			return domain.QuizSession{}, fmt.Errorf("reserve pin: %w", err)
		}
		if !ok {
			continue
		}

		session, err := s.store.CreateSession(ctx, domain.QuizSession{
			ID:     id,
			QuizID: in.QuizID,
			Pin:    pin,
			HostID: emptyToNil(in.HostID),
			Status: domain.StatusWaiting,
		})
		if err != nil {
			_ = s.pins.Release(ctx, pin, id)
			if errors.Is(err, domain.ErrPinTaken) {
				continue
			}
			return domain.QuizSession{}, fmt.Errorf("create session: %w", err)
		}
		log.Printf("session %s opened for quiz %s with pin %s", session.ID, session.QuizID, session.Pin)
		return session, nil
	}
	return domain.QuizSession{}, domain.ErrPinExhausted
}

// GetSession looks a session up by id.
func (s *QuizService) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	return s.store.GetSession(ctx, id)
}

// GetSessionByPin resolves a pin through the pin index, falling back to the store.
func (s *QuizService) GetSessionByPin(ctx context.Context, pin string) (domain.QuizSession, error) {
	if err := domain.ValidatePin(pin); err != nil {
		return domain.QuizSession{}, err
	}
	id, ok, err := s.pins.Lookup(ctx, pin)
	if err != nil {
		log.Printf("pin index lookup failed, scanning store: %v", err)
	}
	if ok {
		session, err := s.store.GetSession(ctx, id)
		if err == nil && session.Pin == pin {
			return session, nil
		}
	}
	return s.store.GetSessionByPin(ctx, pin)
}

// UpdateSession applies a partial update with transition guards:
// waiting -> active -> completed only, the question index stays within
// [0, len(questions)] and only moves while the session is active.
func (s *QuizService) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (domain.QuizSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return domain.QuizSession{}, err
	}
	next, err := s.applyPatch(ctx, session, patch)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if sameSession(session, next) {
		return session, nil
	}
	updated, err := s.store.UpdateSession(ctx, next)
	if err != nil {
		return domain.QuizSession{}, err
	}
	logTransition(session, updated)
	return updated, nil
}

// Start moves a waiting session to active at the first question.
func (s *QuizService) Start(ctx context.Context, id string) (domain.QuizSession, error) {
	active := domain.StatusActive
	return s.UpdateSession(ctx, id, domain.SessionPatch{Status: &active})
}

// Advance moves an active session to the next question, completing it after
// the last one. When fromIndex is set and the session has already moved past
// it, or the session is completed, the session is returned unchanged.
func (s *QuizService) Advance(ctx context.Context, id string, fromIndex *int) (domain.QuizSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return domain.QuizSession{}, err
	}
	switch session.Status {
	case domain.StatusCompleted:
		return session, nil
	case domain.StatusWaiting:
		return domain.QuizSession{}, fmt.Errorf("%w: cannot advance a waiting session", domain.ErrInvalidTransition)
	}
	if fromIndex != nil && *fromIndex != session.CurrentQuestionIndex {
		return session, nil
	}

	quiz, err := s.quizzes.GetQuizWithQuestions(ctx, session.QuizID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	next := session
	if session.CurrentQuestionIndex+1 >= len(quiz.Questions) {
		ended := s.now()
		next.Status = domain.StatusCompleted
		next.EndedAt = &ended
	} else {
		next.CurrentQuestionIndex++
	}
	updated, err := s.store.UpdateSession(ctx, next)
	if err != nil {
		return domain.QuizSession{}, err
	}
	logTransition(session, updated)
	return updated, nil
}

// ScheduleAdvance arms the one-shot leaderboard timer: after delay the
// session advances from fromIndex (the current index when nil). A newer
// schedule for the same session replaces a pending one.
func (s *QuizService) ScheduleAdvance(ctx context.Context, id string, fromIndex *int, delay time.Duration) (domain.QuizSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return domain.QuizSession{}, err
	}
	switch session.Status {
	case domain.StatusCompleted:
		return session, nil
	case domain.StatusWaiting:
		return domain.QuizSession{}, fmt.Errorf("%w: cannot advance a waiting session", domain.ErrInvalidTransition)
	}

	from := session.CurrentQuestionIndex
	if fromIndex != nil {
		from = *fromIndex
	}
	wait := s.autoAdvanceDelay
	if delay > 0 {
		wait = delay
	}
	s.advances.schedule(id, wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), advanceTimeout)
		defer cancel()
		if _, err := s.Advance(ctx, id, &from); err != nil {
			log.Printf("auto-advance of session %s failed: %v", id, err)
		}
	})
	return session, nil
}

// JoinSession adds a player to a waiting session. Names are not unique; the
// returned player id is the caller's identity for later requests.
func (s *QuizService) JoinSession(ctx context.Context, sessionID string, in domain.NewPlayer) (domain.Player, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := domain.Validate(in); err != nil {
		return domain.Player{}, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	if session.Status != domain.StatusWaiting {
		return domain.Player{}, domain.ErrSessionNotJoinable
	}
	player, err := s.store.CreatePlayer(ctx, domain.Player{
		ID:        s.newID(),
		SessionID: sessionID,
		Name:      in.Name,
		JoinedAt:  s.now(),
	})
	if err != nil {
		return domain.Player{}, fmt.Errorf("create player: %w", err)
	}
	return player, nil
}

// ListSessionPlayers returns the leaderboard order: score desc, then join order.
func (s *QuizService) ListSessionPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	return s.store.ListSessionPlayers(ctx, sessionID)
}

// GetPlayer looks a player up by id.
func (s *QuizService) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

func (s *QuizService) applyPatch(ctx context.Context, session domain.QuizSession, patch domain.SessionPatch) (domain.QuizSession, error) {
	next := session
	target := session.Status
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return next, domain.NewValidationError("status", "must be one of waiting, active, completed")
		}
		target = *patch.Status
	}
	if err := checkTransition(session.Status, target); err != nil {
		return next, err
	}

	var quiz domain.QuizWithQuestions
	starting := session.Status == domain.StatusWaiting && target == domain.StatusActive
	if starting || patch.CurrentQuestionIndex != nil {
		var err error
		if quiz, err = s.quizzes.GetQuizWithQuestions(ctx, session.QuizID); err != nil {
			return next, err
		}
	}

	switch {
	case starting:
		if len(quiz.Questions) == 0 {
			return next, domain.ErrNoQuestions
		}
		players, err := s.store.ListSessionPlayers(ctx, session.ID)
		if err != nil {
			return next, err
		}
		if len(players) == 0 {
			return next, domain.ErrNoPlayers
		}
		started := s.now()
		if patch.StartedAt != nil {
			started = *patch.StartedAt
		}
		next.Status = domain.StatusActive
		next.StartedAt = &started
		next.CurrentQuestionIndex = 0
	case session.Status == domain.StatusActive && target == domain.StatusCompleted:
		ended := s.now()
		if patch.EndedAt != nil {
			ended = *patch.EndedAt
		}
		next.Status = domain.StatusCompleted
		next.EndedAt = &ended
	}

	if patch.CurrentQuestionIndex != nil {
		idx := *patch.CurrentQuestionIndex
		if idx < 0 || idx > len(quiz.Questions) {
			return session, domain.NewValidationError("currentQuestionIndex",
				fmt.Sprintf("must be between 0 and %d", len(quiz.Questions)))
		}
		if idx != next.CurrentQuestionIndex && next.Status != domain.StatusActive {
			return session, fmt.Errorf("%w: question index only moves while active", domain.ErrInvalidTransition)
		}
		next.CurrentQuestionIndex = idx
	}
	return next, nil
}

func checkTransition(from, to domain.SessionStatus) error {
	switch {
	case from == to:
		return nil
	case from == domain.StatusWaiting && to == domain.StatusActive:
		return nil
	case from == domain.StatusActive && to == domain.StatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

func sameSession(a, b domain.QuizSession) bool {
	return a.Status == b.Status &&
		a.CurrentQuestionIndex == b.CurrentQuestionIndex &&
		a.StartedAt == b.StartedAt &&
		a.EndedAt == b.EndedAt
}

func logTransition(before, after domain.QuizSession) {
	if before.Status != after.Status {
		log.Printf("session %s: %s -> %s", after.ID, before.Status, after.Status)
		return
	}
	if before.CurrentQuestionIndex != after.CurrentQuestionIndex {
		log.Printf("session %s: question %d -> %d", after.ID, before.CurrentQuestionIndex, after.CurrentQuestionIndex)
	}
}

func sortQuestions(qs []domain.Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
}
