package app

import (
	"sync"
	"time"
)

const advanceTimeout = 5 * time.Second

// advanceTimers holds at most one pending auto-advance per session.
type advanceTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newAdvanceTimers() *advanceTimers {
	return &advanceTimers{timers: make(map[string]*time.Timer)}
}

func (a *advanceTimers) schedule(sessionID string, delay time.Duration, fire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[sessionID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		a.mu.Lock()
		if a.timers[sessionID] == t {
			delete(a.timers, sessionID)
		}
		a.mu.Unlock()
		fire()
	})
	a.timers[sessionID] = t
}

func (a *advanceTimers) pending(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[sessionID]
	return ok
}

func (a *advanceTimers) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
