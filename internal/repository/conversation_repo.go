package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
)

// ConversationRepo is the gorm-backed ConversationRepository.
type ConversationRepo struct {
	db *gorm.DB
}

func NewConversationRepository(database *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: database}
}

// GetOrCreate inserts c unless a conversation already exists for c.MatchID.
//
// Behavior:
//   - INSERT ... ON CONFLICT (match_id) DO NOTHING, then read the surviving row.
//   - Concurrent callers for one match all get the same conversation.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, c *db.Conversation) (*db.Conversation, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			DoNothing: true,
		}).
		Create(c).Error
	if err != nil {
		return nil, err
	}
	return r.GetByMatchID(ctx, c.MatchID)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*db.Conversation, error) {
	var c db.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ConversationRepo) GetByMatchID(ctx context.Context, matchID string) (*db.Conversation, error) {
	var c db.Conversation
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListForUser orders by last message time, falling back to creation time for
// conversations without messages.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]db.Conversation, error) {
	var out []db.Conversation
	err := r.db.WithContext(ctx).
		Where("user_lo = ? OR user_hi = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

// UpdateLastMessage writes the denormalized summary. The WHERE guard keeps a
// slower, older send from overwriting a newer summary.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id, preview, senderID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", id, at).
		Updates(map[string]any{
			"last_message_preview": preview,
			"last_message_sender":  senderID,
			"last_message_at":      at,
		}).Error
}
