// Package repository defines the storage contracts used by the discovery,
// match and chat services, and their gorm (MySQL/SQLite) implementations.
// Process-local and MongoDB implementations live in subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// ErrNotFound is returned by every implementation when a record is absent.
var ErrNotFound = errors.New("record not found")

// NearbyQuery describes a discovery search. Zero-valued filters are not applied.
type NearbyQuery struct {
	Center   geo.Point
	RadiusKm float64
	Region   string
	// Genders accepted by the seeker; empty accepts any.
	Genders []string
	// Birthdate window: MinBirth < birth_date <= MaxBirth.
	MinBirth     time.Time
	MaxBirth     time.Time
	ExcludeIDs   []string
	VerifiedOnly bool
	Limit        int
}

// NearbyProfile is a search hit with its great-circle distance from the query center.
type NearbyProfile struct {
	Profile    db.Profile
	DistanceKm float64
}

// ProfileRepository reads profiles. Only activity flags are written by this core.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*db.Profile, error)
	GetByEmail(ctx context.Context, email string) (*db.Profile, error)
	// FindNearby returns active profiles matching q, nearest first, at most q.Limit.
	FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyProfile, error)
	// Touch marks the profile online and active at the given time.
	Touch(ctx context.Context, id string, at time.Time) error
	// Save inserts or replaces a profile. Used by seeding and tests.
	Save(ctx context.Context, p *db.Profile) error
}

// Liker is a pending like addressed to a user.
type Liker struct {
	UserID  string
	LikedAt time.Time
}

// DecisionRepository persists per-pair like/pass records.
//
// Every write is a single-row atomic statement keyed by the pair key, so
// concurrent likes on the same pair never lose a side.
type DecisionRepository interface {
	// Ensure inserts an empty record for the pair if absent and returns the stored record.
	Ensure(ctx context.Context, pair db.Pair) (*db.Decision, error)
	Get(ctx context.Context, pairKey string) (*db.Decision, error)
	// MarkLiked sets userID's like flag. Reports false if it was already set.
	MarkLiked(ctx context.Context, pair db.Pair, userID string, at time.Time) (bool, error)
	// MarkPassed sets userID's pass flag. Idempotent; never clears a like.
	MarkPassed(ctx context.Context, pair db.Pair, userID string, at time.Time) error
	// PromoteToMatch flips IsMatch if both sides liked and it is still false.
	// Exactly one concurrent caller gets true.
	PromoteToMatch(ctx context.Context, pairKey string, at time.Time) (bool, error)
	// DecidedIDs lists every user userID has liked or passed.
	DecidedIDs(ctx context.Context, userID string) ([]string, error)
	// GetLikers lists pending likes addressed to userID (not matched, not answered
	// by userID), newest first, starting strictly after cursor.
	GetLikers(ctx context.Context, userID string, cursor pagination.Cursor, limit int) ([]Liker, error)
	CountLikers(ctx context.Context, userID string) (int64, error)
}

// ConversationRepository persists match conversations.
type ConversationRepository interface {
	// GetOrCreate inserts c unless a conversation for c.MatchID exists, then returns the stored one.
	GetOrCreate(ctx context.Context, c *db.Conversation) (*db.Conversation, error)
	GetByID(ctx context.Context, id string) (*db.Conversation, error)
	GetByMatchID(ctx context.Context, matchID string) (*db.Conversation, error)
	// ListForUser returns the user's conversations, latest activity first.
	ListForUser(ctx context.Context, userID string) ([]db.Conversation, error)
	// UpdateLastMessage replaces the summary unless a newer message is already recorded.
	UpdateLastMessage(ctx context.Context, id, preview, senderID string, at time.Time) error
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *db.Message) error
	// List returns up to limit messages newest first, starting strictly after cursor.
	List(ctx context.Context, conversationID string, cursor pagination.Cursor, limit int) ([]db.Message, error)
	// MarkRead marks every unread message addressed to recipientID in the conversation
	// read (and delivered). Returns the number of messages transitioned.
	MarkRead(ctx context.Context, conversationID, recipientID string, at time.Time) (int64, error)
	// UnreadCounts returns unread message counts addressed to userID, per conversation.
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

// Set bundles one backend's repositories.
type Set struct {
	Profiles      ProfileRepository
	Decisions     DecisionRepository
	Conversations ConversationRepository
	Messages      MessageRepository
}

// NewGormSet wires the gorm repositories over one connection.
func NewGormSet(database *gorm.DB) *Set {
	return &Set{
		Profiles:      NewProfileRepository(database),
		Decisions:     NewDecisionRepository(database),
		Conversations: NewConversationRepository(database),
		Messages:      NewMessageRepository(database),
	}
}
