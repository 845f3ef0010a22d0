package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBuffer      = 256
	defaultSendTimeout = 10 * time.Second
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("event queue closed")
)

// Async hands events to a single background worker, so a slow or absent
// broker never holds up the caller. Delivery order is publish order.
type Async struct {
	log     zerolog.Logger
	next    Publisher
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan ProductionEvent
	done   chan struct{}
}

func NewAsync(log zerolog.Logger, next Publisher, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		log:     log,
		next:    next,
		timeout: defaultSendTimeout,
		queue:   make(chan ProductionEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues ev and returns at once. The caller's ctx does not bound
// delivery; it usually belongs to a request that is about to end.
func (a *Async) Publish(_ context.Context, ev ProductionEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, ev)
		cancel()
		if err != nil {
			a.log.Warn().Err(err).Str("event", ev.Type).Str("mo", ev.MoName).Msg("event publish failed")
		}
	}
}

// Close stops accepting events and waits until the queued ones are sent.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
