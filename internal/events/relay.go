package events

import (
	"context"
	"sync"

	"saveup/internal/log"
	"saveup/internal/tracker"
)

const defaultBuffer = 64

// Publisher sends one message.
type Publisher interface {
	Publish(ctx context.Context, msg *StateChangedMessage) error
}

// Relay forwards tracker events to a Publisher from a background goroutine,
// so a slow broker never blocks a mutation. When the buffer is full the
// event is dropped and logged.
type Relay struct {
	pub    Publisher
	queue  chan *StateChangedMessage
	logger *log.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewRelay(pub Publisher, buffer int, logger *log.Logger) *Relay {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = log.Discard()
	}
	r := &Relay{
		pub:    pub,
		queue:  make(chan *StateChangedMessage, buffer),
		logger: logger.WithComponent(log.ComponentEvents),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Attach subscribes the relay to t and returns the unsubscribe function.
func (r *Relay) Attach(t *tracker.Tracker) func() {
	return t.Subscribe(r.Handle)
}

// Handle enqueues ev without blocking.
func (r *Relay) Handle(ev tracker.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- NewStateChangedMessage(ev):
	default:
		r.logger.Warn("Event buffer full, dropping state change", "kind", ev.Kind)
	}
}

func (r *Relay) run() {
	defer r.wg.Done()
	for msg := range r.queue {
		if err := r.pub.Publish(context.Background(), msg); err != nil {
			r.logger.Error("Failed to publish state change",
				log.FieldOperation, log.OpPublish,
				log.FieldError, err,
				"kind", msg.Kind)
		}
	}
}

// Close stops accepting events and waits until the buffered ones are
// published.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	r.wg.Wait()
}
