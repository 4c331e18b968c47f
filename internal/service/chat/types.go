package chat

import (
	"time"

	"github.com/oggyb/muzz-connect/internal/db"
)

type SendMessageRequest struct {
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Text           string          `json:"text"`
	Type           string          `json:"type,omitempty"`
	Attachments    []db.Attachment `json:"attachments,omitempty"`
}

// MessageView is a message as one participant sees it. ShowTranslation tells
// the client to render TranslatedText instead of Text.
type MessageView struct {
	ID              string          `json:"id"`
	ConversationID  string          `json:"conversation_id"`
	SenderID        string          `json:"sender_id"`
	RecipientID     string          `json:"recipient_id"`
	Text            string          `json:"text"`
	SourceLocale    string          `json:"source_locale,omitempty"`
	TranslatedText  *string         `json:"translated_text,omitempty"`
	TargetLocale    *string         `json:"target_locale,omitempty"`
	ShowTranslation bool            `json:"show_translation"`
	Type            string          `json:"type"`
	Attachments     []db.Attachment `json:"attachments,omitempty"`
	Delivered       bool            `json:"delivered"`
	Read            bool            `json:"read"`
	CreatedAt       time.Time       `json:"created_at"`
	ReadAt          *time.Time      `json:"read_at,omitempty"`
}

type GetMessagesRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Limit          int    `json:"limit,omitempty"`
	// Before is the NextBefore token of a previous page.
	Before string `json:"before,omitempty"`
}

type GetMessagesResponse struct {
	Messages   []MessageView `json:"messages"`
	NextBefore string        `json:"next_before,omitempty"`
}

type GetConversationsRequest struct {
	UserID string `json:"user_id"`
}

type ConversationSummary struct {
	ID                 string     `json:"id"`
	MatchID            string     `json:"match_id"`
	OtherUserID        string     `json:"other_user_id"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageSender  string     `json:"last_message_sender,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int64      `json:"unread_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

type GetConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}
