// Package conversation owns the one-conversation-per-match rule.
package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository"
)

// Gateway creates conversations for matches, at most one per match id.
type Gateway struct {
	repo repository.ConversationRepository
}

func NewGateway(repo repository.ConversationRepository) *Gateway {
	return &Gateway{repo: repo}
}

// GetOrCreate returns the conversation for matchID, creating it for the pair
// if none exists. Safe under concurrent calls: every caller gets the same row.
func (g *Gateway) GetOrCreate(ctx context.Context, matchID string, pair db.Pair) (*db.Conversation, error) {
	if matchID == "" {
		return nil, fmt.Errorf("conversation: empty match id")
	}
	if existing, err := g.repo.GetByMatchID(ctx, matchID); err == nil {
		return existing, nil
	}

	return g.repo.GetOrCreate(ctx, &db.Conversation{
		ID:      uuid.NewString(),
		MatchID: matchID,
		UserLo:  pair.Lo,
		UserHi:  pair.Hi,
	})
}
