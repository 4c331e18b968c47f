package main

import (
	"context"
	"os"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/service/chat"
	"github.com/oggyb/muzz-connect/internal/service/match"
	"github.com/oggyb/muzz-connect/internal/storage"
)

const perCity = 10

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()
	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init storage", "err", err)
		os.Exit(1)
	}
	defer backend.Close(ctx)

	profiles, err := backend.Seed(ctx, perCity)
	if err != nil {
		log.Error("failed to seed profiles", "err", err)
		os.Exit(1)
	}

	// Likes and matches go through the services so every match gets its
	// conversation.
	appCtx := app.New(cfg, backend.Repos, nil, log)
	matches := match.NewMatchService(appCtx)
	chats := chat.NewChatService(appCtx)

	matched, pending := 0, 0
	for start := 0; start+3 < len(profiles); start += perCity {
		a, b, c := profiles[start], profiles[start+1], profiles[start+3]

		// a and b match and exchange a message
		if _, err := matches.Like(ctx, &match.LikeRequest{UserID: a.ID, TargetID: b.ID}); err != nil {
			log.Warn("seed like failed", "from", a.ID, "to", b.ID, "err", err)
			continue
		}
		resp, err := matches.Like(ctx, &match.LikeRequest{UserID: b.ID, TargetID: a.ID})
		if err != nil {
			log.Warn("seed like failed", "from", b.ID, "to", a.ID, "err", err)
			continue
		}
		if resp.IsMatch {
			matched++
			if _, err := chats.SendMessage(ctx, &chat.SendMessageRequest{
				ConversationID: resp.ConversationID,
				SenderID:       a.ID,
				Text:           "Hi " + b.DisplayName + "!",
			}); err != nil {
				log.Warn("seed message failed", "conversation", resp.ConversationID, "err", err)
			}
		}

		// c likes a without an answer
		if _, err := matches.Like(ctx, &match.LikeRequest{UserID: c.ID, TargetID: a.ID}); err != nil {
			log.Warn("seed like failed", "from", c.ID, "to", a.ID, "err", err)
			continue
		}
		pending++
	}

	log.Info("seeding completed", "profiles", len(profiles), "matches", matched, "pending_likes", pending)
}
