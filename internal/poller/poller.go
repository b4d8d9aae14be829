// Package poller re-fetches session snapshots on a fixed interval and
// reports the ones that changed.
package poller

import (
	"context"
	"errors"
	"log"
	"time"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/presenter"
)

// DefaultInterval is how often views re-fetch while a session is live.
const DefaultInterval = 1500 * time.Millisecond

// ErrStop may be returned by an emit func to end polling without an error.
var ErrStop = errors.New("poller: stop")

// FetchFunc loads the current snapshot of one session.
type FetchFunc func(ctx context.Context) (presenter.Snapshot, error)

// Poller fetches on a fixed interval. A fetch never starts before the
// previous one returned, so requests do not overlap.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	// OnError observes failed fetches; polling continues afterwards.
	// Not-found errors always end polling.
	OnError func(error)
}

func New(fetch FetchFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		OnError:  func(err error) { log.Printf("poll failed: %v", err) },
	}
}

// Run fetches immediately and then every interval, calling emit for the first
// snapshot and each one whose Signature differs from the last emitted.
// It returns nil after emitting a completed session, when ctx is done or when
// emit returns ErrStop.
func (p *Poller) Run(ctx context.Context, emit func(presenter.Snapshot) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := ""
	first := true
	for {
		snap, err := p.fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			if domain.IsNotFound(err) {
				return err
			}
			if p.OnError != nil {
				p.OnError(err)
			}
		default:
			if sig := snap.Signature(); first || sig != last {
				first = false
				last = sig
				if err := emit(snap); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
			if snap.Session.Status == domain.StatusCompleted {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
