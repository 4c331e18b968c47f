package chat

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/events"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/translation"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

const (
	PreviewRunes    = 100
	MaxTextRunes    = 4000
	MaxAttachments  = 10
	DefaultPageSize = 50
	MaxPageSize     = 200
)

var tracer = otel.Tracer("github.com/oggyb/muzz-connect/internal/service/chat")

// Service implements the Chat API: message delivery with optional
// translation, history with read receipts, and the conversation list.
type Service struct {
	appCtx *app.AppContext
}

func NewChatService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// SendMessage persists a message from SenderID to the other participant.
//
// Behavior:
//   - The conversation must exist and SenderID must be one of its participants.
//   - Sender and recipient profiles are loaded concurrently.
//   - The text is translated for the recipient when translation applies; a
//     failed translation never fails the send, it only drops the translated fields.
//   - The message is stored undelivered and unread, the conversation summary is
//     refreshed and the recipient gets a message.created event.
//
// Example:
//
//	svc.SendMessage(ctx, &SendMessageRequest{ConversationID: "c1", SenderID: "u1", Text: "hi"})
func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (resp *MessageView, err error) {
	ctx, span := tracer.Start(ctx, "chat.SendMessage", trace.WithAttributes(
		attribute.String("conversation", req.ConversationID),
	))
	defer endSpan(span, &err)

	log := s.appCtx.Logger.With("op", "SendMessage", "conversation", req.ConversationID, "sender", req.SenderID)

	msgType, err := validateSend(req)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversation(ctx, req.ConversationID, req.SenderID)
	if err != nil {
		return nil, err
	}
	recipientID := conv.Other(req.SenderID)

	var sender, recipient *db.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sender, err = s.appCtx.Repos.Profiles.GetByID(gctx, req.SenderID)
		return err
	})
	g.Go(func() (err error) {
		recipient, err = s.appCtx.Repos.Profiles.GetByID(gctx, recipientID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, svcErr.NotFound("profile")
		}
		return nil, svcErr.Unavailable("profile lookup", err)
	}

	now := s.appCtx.Now()
	msg := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		RecipientID:    recipientID,
		Text:           req.Text,
		SourceLocale:   s.localeOf(sender),
		Type:           msgType,
		Attachments:    req.Attachments,
		CreatedAt:      now,
	}

	if req.Text != "" && s.shouldTranslate(sender, recipient) {
		dst := s.localeOf(recipient)
		res, err := s.translate(ctx, log, req.Text, msg.SourceLocale, dst)
		switch {
		case errors.Is(err, translation.ErrUnsupportedPair):
			log.Debug("translation skipped", "provider", s.appCtx.Translator.Name(), "src", msg.SourceLocale, "dst", dst)
		case err != nil:
			log.Warn("translation skipped", "kind", svcErr.KindOf(err), "err", err)
		default:
			msg.TranslatedText = &res.Text
			msg.TargetLocale = &dst
		}
	}
	span.SetAttributes(attribute.Bool("translated", msg.TranslatedText != nil))

	if err := s.appCtx.Repos.Messages.Create(ctx, msg); err != nil {
		log.Error("persist message failed", "err", err)
		return nil, svcErr.Unavailable("persist message", err)
	}

	preview := Preview(msg)
	if err := s.appCtx.Repos.Conversations.UpdateLastMessage(ctx, conv.ID, preview, req.SenderID, now); err != nil {
		// the message is stored; a stale summary heals on the next send
		log.Warn("update conversation summary failed", "err", err)
	}

	view := toView(msg, recipient.Preferences.AutoTranslate)

	pubErr := s.appCtx.Publisher.Publish(ctx, events.Event{
		Type:   events.TypeMessageCreated,
		UserID: recipientID,
		At:     now,
		Payload: events.MessageCreated{
			MessageID:       msg.ID,
			ConversationID:  conv.ID,
			SenderID:        req.SenderID,
			Preview:         preview,
			ShowTranslation: view.ShowTranslation,
		},
	})
	if pubErr != nil {
		log.Warn("publish message event failed", "err", pubErr)
	}

	log.Debug("message sent", "message", msg.ID, "translated", msg.TranslatedText != nil)
	return &view, nil
}

// GetMessages returns a page of history, newest first, and marks every unread
// message addressed to the caller as read. Repeating the call changes nothing.
func (s *Service) GetMessages(ctx context.Context, req *GetMessagesRequest) (resp *GetMessagesResponse, err error) {
	ctx, span := tracer.Start(ctx, "chat.GetMessages", trace.WithAttributes(
		attribute.String("conversation", req.ConversationID),
	))
	defer endSpan(span, &err)

	if req.ConversationID == "" || req.UserID == "" {
		return nil, svcErr.InvalidArgument("conversation_id and user_id are required")
	}
	cursor, err := pagination.Decode(req.Before)
	if err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	conv, err := s.conversation(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}

	autoTranslate := false
	caller, err := s.appCtx.Repos.Profiles.GetByID(ctx, req.UserID)
	switch {
	case err == nil:
		autoTranslate = caller.Preferences.AutoTranslate
	case !errors.Is(err, repository.ErrNotFound):
		return nil, svcErr.Unavailable("profile lookup", err)
	}

	marked, err := s.appCtx.Repos.Messages.MarkRead(ctx, conv.ID, req.UserID, s.appCtx.Now())
	if err != nil {
		return nil, svcErr.Unavailable("mark read", err)
	}
	span.SetAttributes(attribute.Int64("marked_read", marked))

	msgs, err := s.appCtx.Repos.Messages.List(ctx, conv.ID, cursor, limit)
	if err != nil {
		return nil, svcErr.Unavailable("list messages", err)
	}

	resp = &GetMessagesResponse{Messages: make([]MessageView, 0, len(msgs))}
	for i := range msgs {
		m := &msgs[i]
		// translations are only ever shown to the recipient
		resp.Messages = append(resp.Messages, toView(m, autoTranslate && m.RecipientID == req.UserID))
	}
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		token, err := pagination.Encode(pagination.At(last.ID, last.CreatedAt))
		if err != nil {
			return nil, err
		}
		resp.NextBefore = token
	}

	s.appCtx.Logger.Debug("GetMessages result", "conversation", conv.ID, "count", len(resp.Messages), "marked_read", marked)
	return resp, nil
}

// GetConversations lists the caller's conversations, latest activity first,
// with the caller's unread count for each.
func (s *Service) GetConversations(ctx context.Context, req *GetConversationsRequest) (resp *GetConversationsResponse, err error) {
	ctx, span := tracer.Start(ctx, "chat.GetConversations")
	defer endSpan(span, &err)

	if req.UserID == "" {
		return nil, svcErr.InvalidArgument("user_id is required")
	}

	var (
		convs  []db.Conversation
		unread map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		convs, err = s.appCtx.Repos.Conversations.ListForUser(gctx, req.UserID)
		return err
	})
	g.Go(func() (err error) {
		unread, err = s.appCtx.Repos.Messages.UnreadCounts(gctx, req.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, svcErr.Unavailable("list conversations", err)
	}

	resp = &GetConversationsResponse{Conversations: make([]ConversationSummary, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, ConversationSummary{
			ID:                 c.ID,
			MatchID:            c.MatchID,
			OtherUserID:        c.Other(req.UserID),
			LastMessagePreview: c.LastMessagePreview,
			LastMessageSender:  c.LastMessageSender,
			LastMessageAt:      c.LastMessageAt,
			UnreadCount:        unread[c.ID],
			CreatedAt:          c.CreatedAt,
		})
	}
	return resp, nil
}

// conversation loads a conversation and checks userID takes part in it.
func (s *Service) conversation(ctx context.Context, id, userID string) (*db.Conversation, error) {
	conv, err := s.appCtx.Repos.Conversations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, svcErr.NotFound("conversation")
	} else if err != nil {
		return nil, svcErr.Unavailable("conversation lookup", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, svcErr.InvalidAction("not a participant of this conversation")
	}
	return conv, nil
}

func validateSend(req *SendMessageRequest) (string, error) {
	if req.ConversationID == "" || req.SenderID == "" {
		return "", svcErr.InvalidArgument("conversation_id and sender_id are required")
	}
	if req.Text == "" && len(req.Attachments) == 0 {
		return "", svcErr.InvalidArgument("message needs text or an attachment")
	}
	if utf8.RuneCountInString(req.Text) > MaxTextRunes {
		return "", svcErr.InvalidArgument("text is too long")
	}
	if len(req.Attachments) > MaxAttachments {
		return "", svcErr.InvalidArgument("too many attachments")
	}
	for _, a := range req.Attachments {
		if a.URL == "" {
			return "", svcErr.InvalidArgument("attachment url is required")
		}
	}

	switch req.Type {
	case "":
		return db.MessageTypeText, nil
	case db.MessageTypeText, db.MessageTypeImage, db.MessageTypeAudio, db.MessageTypeSystem:
		return req.Type, nil
	}
	return "", svcErr.InvalidArgument("unknown message type " + req.Type)
}

// Preview is the conversation-list summary of a message: the text cut to
// PreviewRunes runes, or a type tag for media-only messages.
func Preview(m *db.Message) string {
	if m.Text == "" {
		return "[" + m.Type + "]"
	}
	if utf8.RuneCountInString(m.Text) <= PreviewRunes {
		return m.Text
	}
	return string([]rune(m.Text)[:PreviewRunes])
}

func toView(m *db.Message, autoTranslate bool) MessageView {
	return MessageView{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		Text:            m.Text,
		SourceLocale:    m.SourceLocale,
		TranslatedText:  m.TranslatedText,
		TargetLocale:    m.TargetLocale,
		ShowTranslation: autoTranslate && m.TranslatedText != nil,
		Type:            m.Type,
		Attachments:     m.Attachments,
		Delivered:       m.Delivered,
		Read:            m.IsRead,
		CreatedAt:       m.CreatedAt,
		ReadAt:          m.ReadAt,
	}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
