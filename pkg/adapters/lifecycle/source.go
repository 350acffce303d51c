// Package lifecycle bridges the synchronous event bus to the channel-based
// lifecycle.Source interface.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/contractflow/pkg/events"
)

// DefaultBuffer is the number of undelivered events a source holds before
// it starts dropping.
const DefaultBuffer = 64

type busSource struct {
	bus    *events.Bus
	topics []events.Topic
	logger *slog.Logger

	mu     sync.Mutex
	out    chan lifecycle.Event
	closed bool
}

// NewSource creates a lifecycle.Source emitting the bus payloads of topics.
// The bus never waits on the source: when the buffer is full new events are
// dropped and logged.
func NewSource(bus *events.Bus, logger *slog.Logger, topics ...events.Topic) lifecycle.Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &busSource{
		bus:    bus,
		topics: topics,
		logger: logger,
		out:    make(chan lifecycle.Event, DefaultBuffer),
	}
}

func (s *busSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *busSource) Start(ctx context.Context) error {
	unsubs := make([]func(), 0, len(s.topics))
	for _, topic := range s.topics {
		unsubs = append(unsubs, s.bus.Subscribe(topic, s.forward))
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
		return nil
	})
	return nil
}

func (s *busSource) forward(payload any) {
	e, ok := payload.(lifecycle.Event)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- e:
	default:
		s.logger.Warn("event source buffer full, dropping event", "event", e.String())
	}
}
