// Package events publishes post and user lifecycle events to a message
// broker. Publishing is best-effort: failures are logged and never surfaced
// to the request that triggered them.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Topics events are published to.
const (
	TopicPosts = "campuslife.posts"
	TopicUsers = "campuslife.users"
)

// Event names.
const (
	PostCreated = "post.created"
	PostUpdated = "post.updated"
	PostDeleted = "post.deleted"
	PostLiked   = "post.liked"
	PostViewed  = "post.viewed"
	UserCreated = "user.created"
	UserDeleted = "user.deleted"
	UserLogin   = "user.login"
)

// Event is the broker payload for one lifecycle action.
type Event struct {
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    int       `json:"actor_id,omitempty"`
	SubjectID  int       `json:"subject_id,omitempty"`
}

// Backend defines the broker operations the publisher needs.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend. A nil backend disables publishing entirely.
type Publisher struct {
	backend Backend
	logger  *slog.Logger
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend, logger *slog.Logger) *Publisher {
	return &Publisher{backend: backend, logger: logger}
}

// Emit publishes the event, swallowing any failure after logging it.
func (p *Publisher) Emit(ctx context.Context, topic string, name string, actorID, subjectID int) {
	if p == nil || p.backend == nil {
		return
	}

	event := Event{
		Name:       name,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		SubjectID:  subjectID,
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "event encode failed", "event", name, "error", err)
		return
	}

	if _, err := p.backend.Publish(ctx, topic, data, map[string]string{"event": name}); err != nil {
		p.logger.ErrorContext(ctx, "event publish failed", "event", name, "topic", topic, "error", err)
	}
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
