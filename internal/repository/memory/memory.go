// Package memory is the process-local repository backend used for offline
// mode and tests. Each store serializes access through its own mutex, which
// gives the same per-key atomicity the SQL statements give the gorm backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// NewSet returns an empty in-memory backend.
func NewSet() *repository.Set {
	return &repository.Set{
		Profiles:      NewProfileStore(),
		Decisions:     NewDecisionStore(),
		Conversations: NewConversationStore(),
		Messages:      NewMessageStore(),
	}
}

// ---- profiles ----

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]db.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]db.Profile)}
}

func (s *ProfileStore) GetByID(_ context.Context, id string) (*db.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *ProfileStore) GetByEmail(_ context.Context, email string) (*db.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			return cloneProfile(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *ProfileStore) FindNearby(_ context.Context, q repository.NearbyQuery) ([]repository.NearbyProfile, error) {
	if q.Limit <= 0 || q.RadiusKm <= 0 {
		return nil, nil
	}
	excluded := make(map[string]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	genders := make(map[string]bool, len(q.Genders))
	for _, g := range q.Genders {
		genders[g] = true
	}

	s.mu.RLock()
	var rows []db.Profile
	for _, p := range s.profiles {
		switch {
		case !p.Active, p.Region != q.Region, excluded[p.ID]:
			continue
		case len(genders) > 0 && !genders[p.Gender]:
			continue
		case q.VerifiedOnly && !p.Verified:
			continue
		case !q.MaxBirth.IsZero() && !geo.InWindow(p.BirthDate, q.MinBirth, q.MaxBirth):
			continue
		}
		rows = append(rows, *cloneProfile(p))
	}
	s.mu.RUnlock()

	return repository.RankByDistance(rows, q.Center, q.RadiusKm, q.Limit), nil
}

func (s *ProfileStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	p.Online = true
	p.LastActiveAt = at
	s.profiles[id] = p
	return nil
}

func (s *ProfileStore) Save(_ context.Context, p *db.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.profiles {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return fmt.Errorf("email %s already in use", p.Email)
		}
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = *cloneProfile(*p)
	return nil
}

func cloneProfile(p db.Profile) *db.Profile {
	p.Preferences.Genders = append([]string(nil), p.Preferences.Genders...)
	return &p
}

// ---- decisions ----

type DecisionStore struct {
	mu        sync.Mutex
	decisions map[string]*db.Decision
}

func NewDecisionStore() *DecisionStore {
	return &DecisionStore{decisions: make(map[string]*db.Decision)}
}

func (s *DecisionStore) Ensure(_ context.Context, pair db.Pair) (*db.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[pair.Key]
	if !ok {
		now := time.Now().UTC()
		d = &db.Decision{PairKey: pair.Key, UserLo: pair.Lo, UserHi: pair.Hi, CreatedAt: now, UpdatedAt: now}
		s.decisions[pair.Key] = d
	}
	return cloneDecision(d), nil
}

func (s *DecisionStore) Get(_ context.Context, pairKey string) (*db.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[pairKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDecision(d), nil
}

func (s *DecisionStore) MarkLiked(_ context.Context, pair db.Pair, userID string, at time.Time) (bool, error) {
	if !pair.Has(userID) {
		return false, fmt.Errorf("user %q is not part of pair %s", userID, pair.Key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[pair.Key]
	if !ok {
		return false, nil
	}
	liked, likedAt := &d.HiLiked, &d.HiLikedAt
	if pair.IsLo(userID) {
		liked, likedAt = &d.LoLiked, &d.LoLikedAt
	}
	if *liked {
		return false, nil
	}
	*liked = true
	ts := at
	*likedAt = &ts
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *DecisionStore) MarkPassed(_ context.Context, pair db.Pair, userID string, _ time.Time) error {
	if !pair.Has(userID) {
		return fmt.Errorf("user %q is not part of pair %s", userID, pair.Key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[pair.Key]
	if !ok {
		return nil
	}
	if pair.IsLo(userID) {
		d.LoPassed = true
	} else {
		d.HiPassed = true
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *DecisionStore) PromoteToMatch(_ context.Context, pairKey string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[pairKey]
	if !ok || !d.BothLiked() || d.IsMatch {
		return false, nil
	}
	d.IsMatch = true
	ts := at
	d.MatchedAt = &ts
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *DecisionStore) DecidedIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, d := range s.decisions {
		if d.HasLiked(userID) || d.HasPassed(userID) {
			out = append(out, d.Other(userID))
		}
	}
	return out, nil
}

func (s *DecisionStore) GetLikers(_ context.Context, userID string, cursor pagination.Cursor, limit int) ([]repository.Liker, error) {
	if limit <= 0 {
		return nil, nil
	}
	likers := s.pendingLikers(userID)
	sort.Slice(likers, func(i, j int) bool {
		if !likers[i].LikedAt.Equal(likers[j].LikedAt) {
			return likers[i].LikedAt.After(likers[j].LikedAt)
		}
		return likers[i].UserID > likers[j].UserID
	})

	out := make([]repository.Liker, 0, limit)
	for _, l := range likers {
		if !cursor.After(l.LikedAt, l.UserID) {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *DecisionStore) CountLikers(_ context.Context, userID string) (int64, error) {
	return int64(len(s.pendingLikers(userID))), nil
}

func (s *DecisionStore) pendingLikers(userID string) []repository.Liker {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Liker
	for _, d := range s.decisions {
		if d.UserLo != userID && d.UserHi != userID {
			continue
		}
		other := d.Other(userID)
		if d.IsMatch || !d.HasLiked(other) || d.HasLiked(userID) || d.HasPassed(userID) {
			continue
		}
		l := repository.Liker{UserID: other}
		if at := d.LikedAt(other); at != nil {
			l.LikedAt = *at
		}
		out = append(out, l)
	}
	return out
}

func cloneDecision(d *db.Decision) *db.Decision {
	c := *d
	return &c
}

// ---- conversations ----

type ConversationStore struct {
	mu      sync.Mutex
	byID    map[string]*db.Conversation
	byMatch map[string]string
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID:    make(map[string]*db.Conversation),
		byMatch: make(map[string]string),
	}
}

func (s *ConversationStore) GetOrCreate(_ context.Context, c *db.Conversation) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byMatch[c.MatchID]; ok {
		cp := *s.byID[id]
		return &cp, nil
	}
	stored := *c
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.byID[stored.ID] = &stored
	s.byMatch[stored.MatchID] = stored.ID
	cp := stored
	return &cp, nil
}

func (s *ConversationStore) GetByID(_ context.Context, id string) (*db.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *ConversationStore) GetByMatchID(ctx context.Context, matchID string) (*db.Conversation, error) {
	s.mu.Lock()
	id, ok := s.byMatch[matchID]
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *ConversationStore) ListForUser(_ context.Context, userID string) ([]db.Conversation, error) {
	s.mu.Lock()
	var out []db.Conversation
	for _, c := range s.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()

	activity := func(c db.Conversation) time.Time {
		if c.LastMessageAt != nil {
			return *c.LastMessageAt
		}
		return c.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := activity(out[i]), activity(out[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *ConversationStore) UpdateLastMessage(_ context.Context, id, preview, senderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil
	}
	if c.LastMessageAt != nil && c.LastMessageAt.After(at) {
		return nil
	}
	ts := at
	c.LastMessagePreview = preview
	c.LastMessageSender = senderID
	c.LastMessageAt = &ts
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- messages ----

type MessageStore struct {
	mu       sync.Mutex
	messages map[string][]*db.Message // by conversation, insertion order
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]*db.Message)}
}

func (s *MessageStore) Create(_ context.Context, m *db.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = db.MessageTypeText
	}
	cp := cloneMessage(m)
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], cp)
	return nil
}

func (s *MessageStore) List(_ context.Context, conversationID string, cursor pagination.Cursor, limit int) ([]db.Message, error) {
	s.mu.Lock()
	all := make([]db.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		all = append(all, *cloneMessage(m))
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	out := make([]db.Message, 0, limit)
	for _, m := range all {
		if len(out) == limit {
			break
		}
		if cursor.After(m.CreatedAt, m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MessageStore) MarkRead(_ context.Context, conversationID, recipientID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages[conversationID] {
		if m.RecipientID != recipientID || m.IsRead {
			continue
		}
		ts := at
		m.IsRead = true
		m.ReadAt = &ts
		if !m.Delivered {
			m.Delivered = true
			m.DeliveredAt = &ts
		}
		n++
	}
	return n, nil
}

func (s *MessageStore) UnreadCounts(_ context.Context, userID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for conv, msgs := range s.messages {
		for _, m := range msgs {
			if m.RecipientID == userID && !m.IsRead {
				out[conv]++
			}
		}
	}
	return out, nil
}

func cloneMessage(m *db.Message) *db.Message {
	c := *m
	c.Attachments = append([]db.Attachment(nil), m.Attachments...)
	if m.TranslatedText != nil {
		t := *m.TranslatedText
		c.TranslatedText = &t
	}
	if m.TargetLocale != nil {
		l := *m.TargetLocale
		c.TargetLocale = &l
	}
	return &c
}
