package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"trails/domain/events"
)

// Bus is an in-process event bus. Handlers run synchronously on the
// publishing goroutine; a handler panic is recovered and logged so one bad
// subscriber never takes the mutation path down.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[int]func(ctx context.Context, event events.DomainEvent)
	nextID   int
	logger   *zap.Logger
}

// NewBus creates an empty event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string]map[int]func(ctx context.Context, event events.DomainEvent)),
		logger:   logger,
	}
}

// Publish delivers the event to every subscriber of its type
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.RLock()
	subs := make([]func(ctx context.Context, event events.DomainEvent), 0, len(b.handlers[event.GetEventType()]))
	for _, h := range b.handlers[event.GetEventType()] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, handler := range subs {
		b.invoke(ctx, handler, event)
	}
	return nil
}

func (b *Bus) invoke(ctx context.Context, handler func(ctx context.Context, event events.DomainEvent), event events.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r))
		}
	}()
	handler(ctx, event)
}

// Subscribe registers a handler for an event type and returns an unsubscribe
// function.
func (b *Bus) Subscribe(eventType string, handler func(ctx context.Context, event events.DomainEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]func(ctx context.Context, event events.DomainEvent))
	}
	id := b.nextID
	b.nextID++
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}
