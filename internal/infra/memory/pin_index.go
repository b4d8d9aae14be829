package memory

import (
	"context"
	"sync"
)

// PinIndex is an in-memory implementation of app.PinIndex.
type PinIndex struct {
	mu   sync.RWMutex
	pins map[string]string
}

func NewPinIndex() *PinIndex {
	return &PinIndex{
		pins: make(map[string]string),
	}
}

func (p *PinIndex) Reserve(_ context.Context, pin, sessionID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pins[pin]; ok {
		return false, nil
	}
	p.pins[pin] = sessionID
	return true, nil
}

func (p *PinIndex) Lookup(_ context.Context, pin string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.pins[pin]
	return id, ok, nil
}

func (p *PinIndex) Release(_ context.Context, pin, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pins[pin] == sessionID {
		delete(p.pins, pin)
	}
	return nil
}
