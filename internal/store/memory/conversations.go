package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// CreateConversation inserts c with one membership per member id.
func (s *Store) CreateConversation(ctx context.Context, c *models.Conversation, memberIDs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()

	if c.PairKey != nil {
		if _, taken := s.pairs[*c.PairKey]; taken {
			s.mu.Unlock()
			return store.ErrConflict
		}
	}

	c.ID = newID(c.ID)
	c.CreatedAt = s.now()
	row := *c
	row.Members = nil
	s.conversations[c.ID] = &row
	if c.PairKey != nil {
		s.pairs[*c.PairKey] = c.ID
	}

	rows := make(map[string]*models.ConversationMember, len(memberIDs))
	events := make([]models.ConversationMember, 0, len(memberIDs))
	for _, uid := range memberIDs {
		m := &models.ConversationMember{ConversationID: c.ID, UserID: uid, JoinedAt: c.CreatedAt}
		rows[uid] = m
		events = append(events, *m)
	}
	s.members[c.ID] = rows
	c.Members = events
	s.mu.Unlock()

	for _, m := range events {
		s.publish(ctx, feed.TableConversationMembers, feed.EventInsert, m)
	}
	return nil
}

func (s *Store) FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[pairKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s.conversations[id]
	return &c, nil
}

// MembershipsOf returns the user's memberships with their conversation
// attached, oldest conversation first.
func (s *Store) MembershipsOf(ctx context.Context, userID string) ([]models.ConversationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ConversationMember
	for convID, rows := range s.members {
		m, ok := rows[userID]
		if !ok {
			continue
		}
		row := *m
		conv := *s.conversations[convID]
		row.Conversation = &conv
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Conversation.CreatedAt, out[j].Conversation.CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ConversationID < out[j].ConversationID
	})
	return out, nil
}

func (s *Store) GetMembership(ctx context.Context, conversationID, userID string) (*models.ConversationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[conversationID][userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	row := *m
	return &row, nil
}

// ConversationMembers returns every member with their profile attached.
func (s *Store) ConversationMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.members[conversationID]
	out := make([]models.ConversationMember, 0, len(rows))
	for _, m := range rows {
		row := *m
		row.Profile = s.profileCopy(m.UserID)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) (*models.ConversationMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()

	m, ok := s.members[conversationID][userID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	// The watermark never lands before a row this store already handed out.
	at = at.UTC()
	if at.Before(s.last) {
		at = s.last
	}
	s.observe(at)
	m.LastReadAt = &at
	row := *m
	s.mu.Unlock()

	s.publish(ctx, feed.TableConversationMembers, feed.EventUpdate, row)
	return &row, nil
}

// ConversationCount is the number of conversations stored.
func (s *Store) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
