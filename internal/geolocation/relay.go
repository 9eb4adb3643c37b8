package geolocation

import (
	"context"
	"sync"

	"github.com/jengzang/runtrack-go/internal/models"
)

// Relay is a push-based Source. A device bridge calls Push for every
// callback it receives; Push blocks until the watcher has taken the event,
// so events reach the consumer strictly in push order.
type Relay struct {
	mu     sync.Mutex
	active *relayWatch
}

// NewRelay creates an idle relay
func NewRelay() *Relay {
	return &Relay{}
}

type relayWatch struct {
	relay  *Relay
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Watch implements Source. The watch ends when ctx is cancelled or Close is called.
func (r *Relay) Watch(ctx context.Context, _ WatchOptions) (Watch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrWatchActive
	}

	w := &relayWatch{
		relay:  r,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	context.AfterFunc(ctx, func() { _ = w.Close() })
	r.active = w
	return w, nil
}

// Watching reports whether a consumer is attached
func (r *Relay) Watching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Push delivers a fix to the active watch
func (r *Relay) Push(ctx context.Context, fix models.GeoFix) error {
	return r.deliver(ctx, Event{Fix: &fix})
}

// PushError delivers a device error to the active watch
func (r *Relay) PushError(ctx context.Context, perr *PositionError) error {
	return r.deliver(ctx, Event{Err: perr})
}

func (r *Relay) deliver(ctx context.Context, ev Event) error {
	r.mu.Lock()
	w := r.active
	r.mu.Unlock()

	if w == nil {
		return ErrNoWatch
	}

	select {
	case w.events <- ev:
		return nil
	case <-w.done:
		return ErrNoWatch
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *relayWatch) Events() <-chan Event {
	return w.events
}

func (w *relayWatch) Close() error {
	w.once.Do(func() {
		close(w.done)

		w.relay.mu.Lock()
		if w.relay.active == w {
			w.relay.active = nil
		}
		w.relay.mu.Unlock()
	})
	return nil
}
