// Package repotest is a behavioural test suite every repository.Set
// implementation must pass.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// Base is the fixed "now" used by the suite.
var Base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Profile builds an active profile at the given point, born `age` years before Base.
func Profile(id, gender string, age int, lat, lon float64) *db.Profile {
	return &db.Profile{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: id,
		BirthDate:   Base.AddDate(-age, 0, -1),
		Gender:      gender,
		Latitude:    lat,
		Longitude:   lon,
		Region:      "us-east",
		Locale:      "en-US",
		Preferences: db.Preferences{
			Genders:       []string{"female", "male"},
			MinAge:        18,
			MaxAge:        99,
			MaxDistanceKm: 100,
		},
		Active:   true,
		Verified: true,
	}
}

// Run executes every sub-suite against fresh repositories from newSet.
func Run(t *testing.T, newSet func(t *testing.T) *repository.Set) {
	t.Run("Profiles", func(t *testing.T) { ProfileSuite(t, newSet(t).Profiles) })
	t.Run("Decisions", func(t *testing.T) { DecisionSuite(t, newSet(t).Decisions) })
	t.Run("Conversations", func(t *testing.T) { ConversationSuite(t, newSet(t).Conversations) })
	t.Run("Messages", func(t *testing.T) { MessageSuite(t, newSet(t).Messages) })
}

// ProfileSuite checks lookups, the discovery search filters and Touch.
func ProfileSuite(t *testing.T, repo repository.ProfileRepository) {
	ctx := context.Background()

	// ~1.1km per 0.01° latitude
	near := Profile("near", "female", 30, 0.01, 0)
	mid := Profile("mid", "female", 30, 0.2, 0)
	far := Profile("far", "female", 30, 1.0, 0) // ~111km
	man := Profile("man", "male", 30, 0.02, 0)
	young := Profile("young", "female", 17, 0.03, 0)
	old := Profile("old", "female", 60, 0.03, 0)
	other := Profile("other-region", "female", 30, 0.01, 0)
	other.Region = "uk"
	inactive := Profile("inactive", "female", 30, 0.01, 0)
	inactive.Active = false
	unverified := Profile("unverified", "female", 30, 0.05, 0)
	unverified.Verified = false

	for _, p := range []*db.Profile{near, mid, far, man, young, old, other, inactive, unverified} {
		require.NoError(t, repo.Save(ctx, p))
	}

	got, err := repo.GetByID(ctx, "near")
	require.NoError(t, err)
	assert.Equal(t, "near@example.com", got.Email)
	assert.Equal(t, []string{"female", "male"}, got.Preferences.Genders)

	got, err = repo.GetByEmail(ctx, "mid@example.com")
	require.NoError(t, err)
	assert.Equal(t, "mid", got.ID)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	minBirth, maxBirth := geo.BirthdateWindow(Base, 18, 40)
	q := repository.NearbyQuery{
		Center:   geo.Point{},
		RadiusKm: 50,
		Region:   "us-east",
		Genders:  []string{"female"},
		MinBirth: minBirth,
		MaxBirth: maxBirth,
		Limit:    10,
	}

	hits, err := repo.FindNearby(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "unverified", "mid"}, ids(hits))
	assert.InDelta(t, 1.11, hits[0].DistanceKm, 0.01)

	q.VerifiedOnly = true
	q.ExcludeIDs = []string{"near"}
	hits, err = repo.FindNearby(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, ids(hits))

	q.VerifiedOnly = false
	q.ExcludeIDs = nil
	q.Genders = nil
	q.Limit = 2
	hits, err = repo.FindNearby(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "man"}, ids(hits))

	q.Limit = 10
	q.RadiusKm = 200
	q.MinBirth, q.MaxBirth = time.Time{}, time.Time{}
	hits, err = repo.FindNearby(ctx, q)
	require.NoError(t, err)
	assert.Len(t, hits, 7) // everyone active in us-east

	// a circle around 179.95°E reaches across the antimeridian
	east := Profile("dateline-east", "female", 30, 0, 179.95)
	west := Profile("dateline-west", "female", 30, 0, -179.95)
	for _, p := range []*db.Profile{east, west} {
		p.Region = "fiji"
		require.NoError(t, repo.Save(ctx, p))
	}
	hits, err = repo.FindNearby(ctx, repository.NearbyQuery{
		Center:     geo.Point{Lat: 0, Lon: 179.9},
		RadiusKm:   50,
		Region:     "fiji",
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dateline-east", "dateline-west"}, ids(hits))
	assert.InDelta(t, 16.7, hits[1].DistanceKm, 0.2)

	require.NoError(t, repo.Touch(ctx, "near", Base))
	got, err = repo.GetByID(ctx, "near")
	require.NoError(t, err)
	assert.True(t, got.Online)
	assert.True(t, got.LastActiveAt.Equal(Base))
}

// DecisionSuite checks the like/pass/match primitives.
func DecisionSuite(t *testing.T, repo repository.DecisionRepository) {
	ctx := context.Background()
	pair := db.NewPair("bob", "alice")

	d, err := repo.Ensure(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, "alice", d.UserLo)
	assert.Equal(t, "bob", d.UserHi)
	assert.False(t, d.LoLiked || d.HiLiked || d.IsMatch)

	// Ensure never resets flags
	ok, err := repo.MarkLiked(ctx, pair, "bob", Base)
	require.NoError(t, err)
	assert.True(t, ok)
	d, err = repo.Ensure(ctx, pair)
	require.NoError(t, err)
	assert.True(t, d.HasLiked("bob"))
	assert.True(t, d.LikedAt("bob").Equal(Base))

	ok, err = repo.MarkLiked(ctx, pair, "bob", Base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second like is a no-op")

	won, err := repo.PromoteToMatch(ctx, pair.Key, Base)
	require.NoError(t, err)
	assert.False(t, won, "one-sided like cannot match")

	_, err = repo.MarkLiked(ctx, pair, "carol", Base)
	assert.Error(t, err)

	ok, err = repo.MarkLiked(ctx, pair, "alice", Base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	won, err = repo.PromoteToMatch(ctx, pair.Key, Base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, won)
	won, err = repo.PromoteToMatch(ctx, pair.Key, Base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	d, err = repo.Get(ctx, pair.Key)
	require.NoError(t, err)
	assert.True(t, d.IsMatch)
	require.NotNil(t, d.MatchedAt)
	assert.True(t, d.MatchedAt.Equal(Base.Add(time.Minute)))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// pass keeps a prior like
	p2 := db.NewPair("alice", "dave")
	_, err = repo.Ensure(ctx, p2)
	require.NoError(t, err)
	_, err = repo.MarkLiked(ctx, p2, "alice", Base)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPassed(ctx, p2, "alice", Base))
	require.NoError(t, repo.MarkPassed(ctx, p2, "alice", Base))
	d, err = repo.Get(ctx, p2.Key)
	require.NoError(t, err)
	assert.True(t, d.HasLiked("alice"))
	assert.True(t, d.HasPassed("alice"))
	assert.False(t, d.IsMatch)

	// pass is one-sided: erin passed alice, alice has decided nothing on erin
	p3 := db.NewPair("alice", "erin")
	_, err = repo.Ensure(ctx, p3)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPassed(ctx, p3, "erin", Base))

	decided, err := repo.DecidedIDs(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "dave"}, decided)

	decided, err = repo.DecidedIDs(ctx, "erin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice"}, decided)

	LikersSuite(t, repo)
	ConcurrentLikes(t, repo)
}

// LikersSuite checks the liked-you listing, its pagination and the counter.
func LikersSuite(t *testing.T, repo repository.DecisionRepository) {
	ctx := context.Background()
	me := "m-target"

	// five pending likers, one per minute; "a-" ids sort below me, "z-" above
	likers := []string{"a-1", "z-2", "a-3", "z-4", "a-5"}
	for i, id := range likers {
		p := db.NewPair(id, me)
		_, err := repo.Ensure(ctx, p)
		require.NoError(t, err)
		_, err = repo.MarkLiked(ctx, p, id, Base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	// excluded: passed by me, matched, and a like I sent
	passed := db.NewPair("z-passed", me)
	_, _ = repo.Ensure(ctx, passed)
	_, _ = repo.MarkLiked(ctx, passed, "z-passed", Base)
	require.NoError(t, repo.MarkPassed(ctx, passed, me, Base))

	matched := db.NewPair("a-matched", me)
	_, _ = repo.Ensure(ctx, matched)
	_, _ = repo.MarkLiked(ctx, matched, "a-matched", Base)
	_, _ = repo.MarkLiked(ctx, matched, me, Base)
	_, err := repo.PromoteToMatch(ctx, matched.Key, Base)
	require.NoError(t, err)

	mine := db.NewPair("z-mine", me)
	_, _ = repo.Ensure(ctx, mine)
	_, _ = repo.MarkLiked(ctx, mine, me, Base)

	n, err := repo.CountLikers(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	page1, err := repo.GetLikers(ctx, me, pagination.Cursor{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-5", "z-4"}, likerIDs(page1))

	last := page1[len(page1)-1]
	page2, err := repo.GetLikers(ctx, me, pagination.At(last.UserID, last.LikedAt), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-3", "z-2"}, likerIDs(page2))

	last = page2[len(page2)-1]
	page3, err := repo.GetLikers(ctx, me, pagination.At(last.UserID, last.LikedAt), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1"}, likerIDs(page3))
}

// ConcurrentLikes fires both likes of a pair from many goroutines and checks
// that exactly one promotion wins.
func ConcurrentLikes(t *testing.T, repo repository.DecisionRepository) {
	ctx := context.Background()
	pair := db.NewPair("race-a", "race-b")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		user := pair.Lo
		if i%2 == 1 {
			user = pair.Hi
		}
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := repo.Ensure(ctx, pair); err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			if _, err := repo.MarkLiked(ctx, pair, user, Base); err != nil {
				t.Errorf("like: %v", err)
				return
			}
			won, err := repo.PromoteToMatch(ctx, pair.Key, Base)
			if err != nil {
				t.Errorf("promote: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(user)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	d, err := repo.Get(ctx, pair.Key)
	require.NoError(t, err)
	assert.True(t, d.IsMatch)
	assert.True(t, d.BothLiked())
}

// ConversationSuite checks get-or-create idempotency, listing and summaries.
func ConversationSuite(t *testing.T, repo repository.ConversationRepository) {
	ctx := context.Background()
	pair := db.NewPair("u1", "u2")

	first, err := repo.GetOrCreate(ctx, &db.Conversation{ID: uuid.NewString(), MatchID: pair.Key, UserLo: pair.Lo, UserHi: pair.Hi})
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, &db.Conversation{ID: uuid.NewString(), MatchID: pair.Key, UserLo: pair.Lo, UserHi: pair.Hi})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// concurrent creators converge
	p2 := db.NewPair("u1", "u3")
	var wg sync.WaitGroup
	idsSeen := make([]string, 6)
	for i := range idsSeen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.GetOrCreate(ctx, &db.Conversation{ID: uuid.NewString(), MatchID: p2.Key, UserLo: p2.Lo, UserHi: p2.Hi})
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			idsSeen[i] = c.ID
		}(i)
	}
	wg.Wait()
	for _, id := range idsSeen[1:] {
		assert.Equal(t, idsSeen[0], id)
	}

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.Key, got.MatchID)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByMatchID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// later than any creation time, so this conversation sorts first
	latest := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, repo.UpdateLastMessage(ctx, first.ID, "hello", "u1", latest))
	// an older summary never overwrites a newer one
	require.NoError(t, repo.UpdateLastMessage(ctx, first.ID, "stale", "u2", Base))

	got, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.LastMessagePreview)
	assert.Equal(t, "u1", got.LastMessageSender)

	list, err := repo.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "latest activity first")

	list, err = repo.ListForUser(ctx, "u3")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// MessageSuite checks paging, read-on-retrieval marking and unread counts.
func MessageSuite(t *testing.T, repo repository.MessageRepository) {
	ctx := context.Background()
	conv := "conv-1"

	for i := 0; i < 5; i++ {
		sender, recipient := "u1", "u2"
		if i == 4 {
			sender, recipient = "u2", "u1"
		}
		require.NoError(t, repo.Create(ctx, &db.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: conv,
			SenderID:       sender,
			RecipientID:    recipient,
			Text:           fmt.Sprintf("msg %d", i),
			Type:           db.MessageTypeText,
			CreatedAt:      Base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Create(ctx, &db.Message{
		ID: "other", ConversationID: "conv-2", SenderID: "u3", RecipientID: "u2",
		Type: db.MessageTypeText, CreatedAt: Base,
	}))

	page, err := repo.List(ctx, conv, pagination.Cursor{}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m3", "m2"}, messageIDs(page))

	last := page[len(page)-1]
	page, err = repo.List(ctx, conv, pagination.At(last.ID, last.CreatedAt), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m0"}, messageIDs(page))

	counts, err := repo.UnreadCounts(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{conv: 4, "conv-2": 1}, counts)

	n, err := repo.MarkRead(ctx, conv, "u2", Base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = repo.MarkRead(ctx, conv, "u2", Base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "marking read is idempotent")

	page, err = repo.List(ctx, conv, pagination.Cursor{}, 10)
	require.NoError(t, err)
	for _, m := range page {
		if m.RecipientID == "u2" {
			assert.True(t, m.IsRead)
			assert.True(t, m.Delivered)
			require.NotNil(t, m.ReadAt)
			assert.True(t, m.ReadAt.Equal(Base.Add(time.Minute)))
		} else {
			assert.False(t, m.IsRead, "the sender's own messages stay unread for them")
		}
	}

	counts, err = repo.UnreadCounts(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"conv-2": 1}, counts)
}

func ids(hits []repository.NearbyProfile) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Profile.ID)
	}
	return out
}

func likerIDs(likers []repository.Liker) []string {
	out := make([]string, 0, len(likers))
	for _, l := range likers {
		out = append(out, l.UserID)
	}
	return out
}

func messageIDs(msgs []db.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
