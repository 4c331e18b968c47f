package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/conversation"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/events"
	"github.com/oggyb/muzz-connect/internal/repository/repotest"
	"github.com/oggyb/muzz-connect/internal/service/chat"
	"github.com/oggyb/muzz-connect/internal/service/servicetest"
	"github.com/oggyb/muzz-connect/internal/translation"
)

//
// Test helpers
//

// spyTranslator counts calls and can fail, stall or refuse pairs.
type spyTranslator struct {
	mu          sync.Mutex
	calls       int
	err         error
	delay       time.Duration
	ignoreCtx   bool
	unsupported bool
}

func (s *spyTranslator) Translate(ctx context.Context, text, _, dst string) (translation.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 && s.ignoreCtx {
		time.Sleep(s.delay)
	} else if s.delay > 0 {
		select {
		case <-ctx.Done():
			return translation.Result{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return translation.Result{}, s.err
	}
	return translation.Result{Text: "<" + dst + "> " + text, Confidence: 0.9}, nil
}

func (s *spyTranslator) DetectLanguage(context.Context, string) (string, error) { return "und", nil }
func (s *spyTranslator) SupportsLocales(string, string) bool               { return !s.unsupported }
func (s *spyTranslator) Name() string                                        { return "spy" }

func (s *spyTranslator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func person(id, region, locale string, autoTranslate bool) *db.Profile {
	p := repotest.Profile(id, "female", 30, 0, 0)
	p.Region = region
	p.Locale = locale
	p.Preferences.AutoTranslate = autoTranslate
	return p
}

// setupService seeds:
//   - en: us-east, en-US, no auto-translate
//   - fr: eu-fr, fr-FR, auto-translate
//   - gb: uk, en-GB, auto-translate
//   - jp: apac-jp (translation disabled for the region), ja-JP, auto-translate
//   - outsider: part of no conversation
func setupService(t *testing.T, backend servicetest.Backend) (*chat.Service, *servicetest.Env) {
	t.Helper()
	env := servicetest.New(t, backend)
	env.App.Translator = translation.Mock{}
	env.Save(t,
		person("en", "us-east", "en-US", false),
		person("fr", "eu-fr", "fr-FR", true),
		person("gb", "uk", "en-GB", true),
		person("jp", "apac-jp", "ja-JP", true),
		person("outsider", "us-east", "en-US", false),
	)

	// every Now() is one second later than the previous one
	var mu sync.Mutex
	now := repotest.Base
	env.App.Clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	return chat.NewChatService(env.App), env
}

func converse(t *testing.T, env *servicetest.Env, a, b string) string {
	t.Helper()
	pair := db.NewPair(a, b)
	c, err := conversation.NewGateway(env.App.Repos.Conversations).GetOrCreate(context.Background(), pair.Key, pair)
	require.NoError(t, err)
	return c.ID
}

func send(t *testing.T, svc *chat.Service, convID, from, text string) *chat.MessageView {
	t.Helper()
	view, err := svc.SendMessage(context.Background(), &chat.SendMessageRequest{
		ConversationID: convID,
		SenderID:       from,
		Text:           text,
	})
	require.NoError(t, err)
	return view
}

//
// Tests
//

func TestSendMessageTranslatesForRecipient(t *testing.T) {
	for name, backend := range servicetest.Backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, env := setupService(t, backend)
			convID := converse(t, env, "en", "fr")

			view := send(t, svc, convID, "en", "hello")
			assert.Equal(t, "fr", view.RecipientID)
			assert.Equal(t, "hello", view.Text)
			assert.Equal(t, "en-US", view.SourceLocale)
			require.NotNil(t, view.TranslatedText)
			assert.Equal(t, "[fr] hello", *view.TranslatedText)
			require.NotNil(t, view.TargetLocale)
			assert.Equal(t, "fr-FR", *view.TargetLocale)
			assert.True(t, view.ShowTranslation)
			assert.Equal(t, db.MessageTypeText, view.Type)
			assert.False(t, view.Delivered)
			assert.False(t, view.Read)

			conv, err := env.App.Repos.Conversations.GetByID(ctx, convID)
			require.NoError(t, err)
			assert.Equal(t, "hello", conv.LastMessagePreview)
			assert.Equal(t, "en", conv.LastMessageSender)
			require.NotNil(t, conv.LastMessageAt)
			assert.True(t, conv.LastMessageAt.Equal(view.CreatedAt))

			created := env.Events.OfType(events.TypeMessageCreated)
			require.Len(t, created, 1)
			assert.Equal(t, "fr", created[0].UserID)
			payload := created[0].Payload.(events.MessageCreated)
			assert.Equal(t, view.ID, payload.MessageID)
			assert.True(t, payload.ShowTranslation)

			// the reply goes to a recipient without auto-translate
			reply := send(t, svc, convID, "fr", "bonjour")
			assert.Nil(t, reply.TranslatedText)
			assert.False(t, reply.ShowTranslation)
		})
	}
}

func TestTranslationPredicate(t *testing.T) {
	cases := []struct {
		name      string
		from, to  string
		disable   bool
		wantCalls int
	}{
		{name: "different languages, recipient opted in", from: "en", to: "fr", wantCalls: 1},
		{name: "same base language", from: "en", to: "gb"},
		{name: "recipient did not opt in", from: "fr", to: "en"},
		{name: "region disables translation", from: "en", to: "jp"},
		{name: "deployment disables translation", from: "en", to: "fr", disable: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, env := setupService(t, servicetest.Memory)
			spy := &spyTranslator{}
			env.App.Translator = spy
			env.App.Config.Translation.Enabled = !tc.disable

			view := send(t, svc, converse(t, env, tc.from, tc.to), tc.from, "hi")
			assert.Equal(t, tc.wantCalls, spy.Calls())
			assert.Equal(t, tc.wantCalls > 0, view.TranslatedText != nil)
			assert.Equal(t, tc.wantCalls > 0, view.ShowTranslation)
		})
	}
}

// TestTranslationFailureDoesNotFailSend: provider errors, timeouts and
// unsupported pairs all deliver the original text.
func TestTranslationFailureDoesNotFailSend(t *testing.T) {
	cases := map[string]*spyTranslator{
		"provider error":   {err: errors.New("503 from provider")},
		"timeout":          {delay: 5 * time.Second},
		"stalled provider": {delay: 2 * time.Second, ignoreCtx: true},
		"unsupported pair": {unsupported: true},
	}

	for name, spy := range cases {
		t.Run(name, func(t *testing.T) {
			svc, env := setupService(t, servicetest.Memory)
			env.App.Translator = spy
			env.App.Config.Translation.Timeout = 20 * time.Millisecond

			start := time.Now()
			view := send(t, svc, converse(t, env, "en", "fr"), "en", "hello")
			assert.Less(t, time.Since(start), time.Second)

			assert.Equal(t, "hello", view.Text)
			assert.Nil(t, view.TranslatedText)
			assert.Nil(t, view.TargetLocale)
			assert.False(t, view.ShowTranslation)
		})
	}
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc, env := setupService(t, servicetest.Memory)
	convID := converse(t, env, "en", "fr")

	_, err := svc.SendMessage(ctx, &chat.SendMessageRequest{ConversationID: "nope", SenderID: "en", Text: "hi"})
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	_, err = svc.SendMessage(ctx, &chat.SendMessageRequest{ConversationID: convID, SenderID: "outsider", Text: "hi"})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidAction))

	_, err = svc.SendMessage(ctx, &chat.SendMessageRequest{ConversationID: convID, SenderID: "en"})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	_, err = svc.SendMessage(ctx, &chat.SendMessageRequest{ConversationID: convID, SenderID: "en", Text: "hi", Type: "video"})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	// media-only message
	view, err := svc.SendMessage(ctx, &chat.SendMessageRequest{
		ConversationID: convID,
		SenderID:       "en",
		Type:           db.MessageTypeImage,
		Attachments:    []db.Attachment{{URL: "https://cdn.example.com/a.jpg", MimeType: "image/jpeg"}},
	})
	require.NoError(t, err)
	assert.Nil(t, view.TranslatedText)
	require.Len(t, view.Attachments, 1)

	conv, err := env.App.Repos.Conversations.GetByID(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "[image]", conv.LastMessagePreview)

	assert.Empty(t, env.Events.OfType(events.TypeMatchCreated))
	assert.Len(t, env.Events.OfType(events.TypeMessageCreated), 1)
}

func TestPreviewTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 150)
	p := chat.Preview(&db.Message{Text: long, Type: db.MessageTypeText})
	assert.Equal(t, 100, utf8.RuneCountInString(p))
	assert.True(t, utf8.ValidString(p))

	assert.Equal(t, "short", chat.Preview(&db.Message{Text: "short"}))
	assert.Equal(t, "[audio]", chat.Preview(&db.Message{Type: db.MessageTypeAudio}))
}

// TestGetMessagesMarksRead: fetching marks the caller's unread messages read,
// only the caller's, and a second fetch changes nothing.
func TestGetMessagesMarksRead(t *testing.T) {
	for name, backend := range servicetest.Backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, env := setupService(t, backend)
			convID := converse(t, env, "en", "fr")

			send(t, svc, convID, "en", "one")
			send(t, svc, convID, "en", "two")
			send(t, svc, convID, "en", "three")
			send(t, svc, convID, "fr", "quatre")

			list, err := svc.GetConversations(ctx, &chat.GetConversationsRequest{UserID: "fr"})
			require.NoError(t, err)
			require.Len(t, list.Conversations, 1)
			assert.Equal(t, int64(3), list.Conversations[0].UnreadCount)
			assert.Equal(t, "en", list.Conversations[0].OtherUserID)
			assert.Equal(t, "quatre", list.Conversations[0].LastMessagePreview)

			first, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{ConversationID: convID, UserID: "fr"})
			require.NoError(t, err)
			require.Len(t, first.Messages, 4)
			assert.Equal(t, "quatre", first.Messages[0].Text)
			assert.Equal(t, "one", first.Messages[3].Text)
			for _, m := range first.Messages {
				if m.RecipientID == "fr" {
					assert.True(t, m.Read, m.Text)
					assert.True(t, m.Delivered, m.Text)
					require.NotNil(t, m.ReadAt)
					assert.True(t, m.ShowTranslation, m.Text)
				} else {
					assert.False(t, m.Read, m.Text)
				}
			}
			assert.Empty(t, first.NextBefore)

			second, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{ConversationID: convID, UserID: "fr"})
			require.NoError(t, err)
			require.Len(t, second.Messages, 4)
			for i := range second.Messages {
				assert.Equal(t, first.Messages[i].Read, second.Messages[i].Read)
				if first.Messages[i].ReadAt != nil {
					assert.True(t, first.Messages[i].ReadAt.Equal(*second.Messages[i].ReadAt))
				}
			}

			frList, err := svc.GetConversations(ctx, &chat.GetConversationsRequest{UserID: "fr"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), frList.Conversations[0].UnreadCount)
			enList, err := svc.GetConversations(ctx, &chat.GetConversationsRequest{UserID: "en"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), enList.Conversations[0].UnreadCount)

			// the sender never sees the recipient's translation flag
			enView, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{ConversationID: convID, UserID: "en"})
			require.NoError(t, err)
			for _, m := range enView.Messages {
				assert.False(t, m.ShowTranslation, m.Text)
			}
		})
	}
}

func TestGetMessagesPaging(t *testing.T) {
	ctx := context.Background()
	svc, env := setupService(t, servicetest.Memory)
	convID := converse(t, env, "en", "gb")
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		send(t, svc, convID, "en", text)
	}

	var got []string
	before := ""
	for page := 0; page < 5; page++ {
		resp, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{
			ConversationID: convID, UserID: "gb", Limit: 2, Before: before,
		})
		require.NoError(t, err)
		for _, m := range resp.Messages {
			got = append(got, m.Text)
		}
		if resp.NextBefore == "" {
			break
		}
		before = resp.NextBefore
	}
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, got)

	_, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{ConversationID: convID, UserID: "outsider"})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidAction))

	_, err = svc.GetMessages(ctx, &chat.GetMessagesRequest{ConversationID: convID, UserID: "gb", Before: "!!"})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))
}

// TestGetMessagesPagingSubMillisecond sends messages 100µs apart, so many
// share a millisecond; paging must still return each exactly once.
func TestGetMessagesPagingSubMillisecond(t *testing.T) {
	for name, backend := range servicetest.Backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, env := setupService(t, backend)
			convID := converse(t, env, "en", "gb")

			var mu sync.Mutex
			now := repotest.Base
			env.App.Clock = func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				now = now.Add(100 * time.Microsecond)
				return now
			}

			var want []string
			for i := 0; i < 20; i++ {
				text := fmt.Sprintf("m%02d", i)
				send(t, svc, convID, "en", text)
				want = append([]string{text}, want...)
			}

			var got []string
			before := ""
			for page := 0; page < 20; page++ {
				resp, err := svc.GetMessages(ctx, &chat.GetMessagesRequest{
					ConversationID: convID, UserID: "gb", Limit: 3, Before: before,
				})
				require.NoError(t, err)
				for _, m := range resp.Messages {
					got = append(got, m.Text)
				}
				if resp.NextBefore == "" {
					break
				}
				before = resp.NextBefore
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestGetConversationsLatestActivityFirst(t *testing.T) {
	ctx := context.Background()
	svc, env := setupService(t, servicetest.Memory)

	withFR := converse(t, env, "en", "fr")
	withGB := converse(t, env, "en", "gb")
	send(t, svc, withGB, "gb", "hey")
	send(t, svc, withFR, "fr", "salut")

	resp, err := svc.GetConversations(ctx, &chat.GetConversationsRequest{UserID: "en"})
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, withFR, resp.Conversations[0].ID)
	assert.Equal(t, "fr", resp.Conversations[0].LastMessageSender)
	assert.Equal(t, withGB, resp.Conversations[1].ID)
	assert.Equal(t, int64(1), resp.Conversations[1].UnreadCount)
}
