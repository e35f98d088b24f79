// Package stream is the in-process pub-sub the AI services use to react to each other's updates.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Topics published by the services.
const (
	TopicEventTracked        = "event.tracked"
	TopicFriendActivity      = "friend.activity"
	TopicProximityAlert      = "friend.proximity"
	TopicVenueUpdate         = "venue.update"
	TopicPredictionsUpdated  = "prediction.updated"
	TopicNotificationCreated = "notification.created"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// Message is one published update.
type Message struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Handler receives messages for a subscription.
type Handler func(ctx context.Context, msg Message)

// Publisher publishes messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Remote mirrors messages to and from another process.
type Remote interface {
	Send(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(Message)) error
	Close() error
}

type subscription struct {
	id    uint64
	topic string
	fn    Handler
}

// Manager dispatches messages to local subscribers and, when configured, a Remote.
type Manager struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	origin string
	remote Remote
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates an in-process Manager.
func NewManager() *Manager {
	return &Manager{
		origin: uuid.NewString(),
		now:    time.Now,
		logger: slog.Default().With("component", "stream"),
	}
}

// Subscribe registers fn for topic and returns a function that removes it.
func (m *Manager) Subscribe(topic string, fn Handler) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, topic: topic, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish encodes payload and delivers it to subscribers in registration order.
func (m *Manager) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s payload", topic)
	}
	msg := Message{Topic: topic, Payload: raw, Timestamp: m.now(), Origin: m.origin}
	m.dispatch(ctx, msg)

	m.mu.RLock()
	remote := m.remote
	m.mu.RUnlock()
	if remote != nil {
		if err := remote.Send(ctx, msg); err != nil {
			m.logger.Warn("failed to forward message", "topic", topic, "error", err)
		}
	}
	return nil
}

// Attach mirrors local messages to remote and dispatches remote messages from other origins locally.
func (m *Manager) Attach(ctx context.Context, remote Remote) error {
	if err := remote.StartForwarder(ctx, func(msg Message) {
		if msg.Origin == m.origin {
			return
		}
		m.dispatch(ctx, msg)
	}); err != nil {
		return errors.Wrap(err, "failed to start stream forwarder")
	}
	m.mu.Lock()
	m.remote = remote
	m.mu.Unlock()
	return nil
}

// Close detaches and closes the remote, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	remote := m.remote
	m.remote = nil
	m.mu.Unlock()
	if remote != nil {
		return remote.Close()
	}
	return nil
}

func (m *Manager) dispatch(ctx context.Context, msg Message) {
	m.mu.RLock()
	targets := make([]Handler, 0, len(m.subs))
	for _, s := range m.subs {
		if s.topic == msg.Topic || s.topic == TopicAll {
			targets = append(targets, s.fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, msg)
	}
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// OrNop returns p, or a NopPublisher when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}

var (
	_ Publisher = (*Manager)(nil)
	_ Publisher = NopPublisher{}
)
