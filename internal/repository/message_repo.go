package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// MessageRepo is the gorm-backed MessageRepository.
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepo {
	return &MessageRepo{db: database}
}

func (r *MessageRepo) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// List returns a page of messages, newest first (created_at DESC, id DESC).
func (r *MessageRepo) List(ctx context.Context, conversationID string, cursor pagination.Cursor, limit int) ([]db.Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)

	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var out []db.Message
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead is the read-on-retrieval receipt: one UPDATE over every unread
// message addressed to recipientID. Delivered is implied by read.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, recipientID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, recipientID, false).
		Updates(map[string]any{
			"is_read":      true,
			"read_at":      at,
			"delivered":    true,
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
		})
	return res.RowsAffected, res.Error
}

func (r *MessageRepo) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []struct {
		ConversationID string
		N              int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.N
	}
	return out, nil
}
