package client

import (
	"log/slog"
	"sync"

	"github.com/openmined/syftdrop/internal/transfer"
)

const subscriberBuffer = 256

// EventBus fans file updates out to subscribers. A subscriber that falls behind loses updates
// rather than stalling the uploads.
type EventBus struct {
	subs   map[int]chan transfer.FileView
	nextID int
	closed bool
	mu     sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan transfer.FileView)}
}

func (b *EventBus) Publish(view transfer.FileView) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- view:
		default:
			slog.Debug("event dropped", "subscriber", id, "file", view.ID)
		}
	}
}

// Subscribe returns a channel of updates and a function that removes the subscription
func (b *EventBus) Subscribe() (<-chan transfer.FileView, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan transfer.FileView, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}

func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
