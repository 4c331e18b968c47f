// Package events emits match/message notifications as plain data. Fan-out to
// push or socket clients is the subscriber's job.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TypeMatchCreated   = "match.created"
	TypeMessageCreated = "message.created"
)

// Event is addressed to a single user.
type Event struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// MatchCreated is sent to both participants of a new match.
type MatchCreated struct {
	MatchID        string    `json:"match_id"`
	ConversationID string    `json:"conversation_id"`
	WithUserID     string    `json:"with_user_id"`
	MatchedAt      time.Time `json:"matched_at"`
}

// MessageCreated is sent to the recipient of a new message.
type MessageCreated struct {
	MessageID       string `json:"message_id"`
	ConversationID  string `json:"conversation_id"`
	SenderID        string `json:"sender_id"`
	Preview         string `json:"preview"`
	ShowTranslation bool   `json:"show_translation"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Channel is the Redis channel a user's events are published on.
func Channel(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

// RedisPublisher PUBLISHes JSON events on the per-user channel.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, Channel(e.UserID), b).Err()
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("event", "type", e.Type, "user", e.UserID, "payload", e.Payload)
	return nil
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
