// Package eventbus is a synchronous in-process publish/subscribe bus for
// authentication and session lifecycle events.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/idx"
)

const (
	TopicAuthenticationProgress      = "AUTHENTICATION.PROGRESS"
	TopicAuthenticationSucceeded     = "AUTHENTICATION.SUCCEEDED"
	TopicAuthenticationFailed        = "AUTHENTICATION.FAILED"
	TopicAuthenticationAccountLocked = "AUTHENTICATION.ACCOUNT_LOCKED"

	TopicSessionExpire = "SESSION.EXPIRE"
	TopicSessionStop   = "SESSION.STOP"
)

// Event is a single notification. Identifier is the primary identity the
// event concerns; Payload carries topic-specific data such as the identifier
// collection of an expiring session.
type Event struct {
	ID         idx.ID
	Topic      string
	Identifier string
	Payload    any
	OccurredAt time.Time
}

// NewEvent stamps a fresh ID and timestamp.
func NewEvent(topic, identifier string) Event {
	now := time.Now().UTC()
	return Event{
		ID:         idx.NewAt(now),
		Topic:      topic,
		Identifier: identifier,
		OccurredAt: now,
	}
}

type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to handlers registered for the event's topic, in
// registration order, on the publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[string][]subscription), logger: logger}
}

// Register subscribes h to topic and returns a function that removes it.
func (b *Bus) Register(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	return func() { b.unregister(topic, id) }
}

func (b *Bus) unregister(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// IsRegistered reports whether topic has at least one handler.
func (b *Bus) IsRegistered(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic]) > 0
}

// Publish delivers ev to every handler of its topic. Every handler runs even
// if an earlier one fails; the failures are joined. No lock is held while
// handlers run, so handlers may publish or register themselves.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.Topic == "" {
		return errors.New("eventbus: event has no topic")
	}
	if ev.ID.IsZero() {
		stamped := NewEvent(ev.Topic, ev.Identifier)
		stamped.Payload = ev.Payload
		ev = stamped
	}

	b.mu.RLock()
	subs := b.subs[ev.Topic]
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "topic", ev.Topic, "event_id", ev.ID.String(), "subscribers", len(subs))

	var errs []error
	for _, s := range subs {
		if err := s.handler(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("eventbus: %s handler: %w", ev.Topic, err))
		}
	}
	return errors.Join(errs...)
}
