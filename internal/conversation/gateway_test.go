package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository/memory"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(memory.NewConversationStore())
	pair := db.NewPair("b", "a")

	first, err := gw.GetOrCreate(ctx, pair.Key, pair)
	require.NoError(t, err)
	assert.Equal(t, "a", first.UserLo)
	assert.Equal(t, "b", first.UserHi)

	second, err := gw.GetOrCreate(ctx, pair.Key, pair)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(memory.NewConversationStore())
	pair := db.NewPair("x", "y")

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := gw.GetOrCreate(ctx, pair.Key, pair)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetOrCreateRejectsEmptyMatch(t *testing.T) {
	gw := NewGateway(memory.NewConversationStore())
	_, err := gw.GetOrCreate(context.Background(), "", db.NewPair("a", "b"))
	assert.Error(t, err)
}
