// Package events is the in-process publish/subscribe bus that lets the
// stage controller, the signature store and any number of independent
// consumers react to the same change without a shared owner.
//
// Delivery is synchronous: Publish returns once every handler subscribed to
// the topic has run, in subscription order.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Topic names a stream of payloads.
type Topic string

const (
	// TopicStageChanged carries StageChanged.
	TopicStageChanged Topic = "stage-changed"
	// TopicSignatureChanged carries SignatureChanged.
	TopicSignatureChanged Topic = "signature-changed"
	// TopicCacheChanged carries CacheChanged.
	TopicCacheChanged Topic = "cache-changed"
)

// Handler receives one payload.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous fan-out bus. The zero value is not usable; call New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
	logger *slog.Logger
}

// New creates an empty bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[Topic][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for topic. The returned function removes it;
// calling it more than once is harmless.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			// Copy so in-flight Publish snapshots stay intact.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = next
			}
			return
		}
	}
}

// Publish delivers payload to every handler of topic. Handlers may publish
// or subscribe themselves; subscriptions added during delivery only see
// later publishes.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(topic, s, payload)
	}
}

func (b *Bus) deliver(topic Topic, s subscription, payload any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			attrs := []any{"topic", topic, "error", fmt.Errorf("handler panic: %v", recovered)}
			if b.logger.Enabled(context.Background(), slog.LevelDebug) {
				attrs = append(attrs, "stack", string(debug.Stack()))
			}
			b.logger.Error("event handler panic", attrs...)
		}
	}()
	s.handler(payload)
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// On subscribes a handler typed to T. Payloads of any other type are
// ignored.
func On[T any](b *Bus, topic Topic, fn func(T)) (unsubscribe func()) {
	return b.Subscribe(topic, func(payload any) {
		if v, ok := payload.(T); ok {
			fn(v)
		}
	})
}
