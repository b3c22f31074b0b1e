package memory

import (
	"context"
	"time"

	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

func (s *Store) CreatePrivateMessage(ctx context.Context, m *models.PrivateMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()

	if _, ok := s.conversations[m.ConversationID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	m.ID = newID(m.ID)
	m.CreatedAt = s.now()
	m.Profile = s.profileCopy(m.UserID)

	row := *m
	row.Profile = nil
	s.private = append(s.private, &row)
	event := *m
	s.mu.Unlock()

	s.publish(ctx, feed.TablePrivateMessages, feed.EventInsert, event)
	return nil
}

// ListPrivateMessages returns up to limit messages, newest first.
func (s *Store) ListPrivateMessages(ctx context.Context, conversationID string, limit int) ([]models.PrivateMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PrivateMessage
	for i := len(s.private) - 1; i >= 0; i-- {
		m := s.private[i]
		if m.ConversationID != conversationID {
			continue
		}
		row := *m
		row.Profile = s.profileCopy(m.UserID)
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LatestPrivateMessage(ctx context.Context, conversationID string) (*models.PrivateMessage, error) {
	msgs, err := s.ListPrivateMessages(ctx, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, store.ErrNotFound
	}
	return &msgs[0], nil
}

// CountMessagesAfter counts messages not written by excludeUserID created
// after the given time, or all of them when after is nil.
func (s *Store) CountMessagesAfter(ctx context.Context, conversationID, excludeUserID string, after *time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.private {
		if m.ConversationID != conversationID || m.UserID == excludeUserID {
			continue
		}
		if after != nil && !m.CreatedAt.After(*after) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *Store) CreateGlobalMessage(ctx context.Context, m *models.GlobalMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()

	m.ID = newID(m.ID)
	m.CreatedAt = s.now()
	m.Profile = s.profileCopy(m.UserID)

	row := *m
	row.Profile = nil
	s.global = append(s.global, &row)
	event := *m
	s.mu.Unlock()

	s.publish(ctx, feed.TableGlobalMessages, feed.EventInsert, event)
	return nil
}

// ListGlobalMessages returns up to limit messages, newest first.
func (s *Store) ListGlobalMessages(ctx context.Context, limit int) ([]models.GlobalMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.GlobalMessage
	for i := len(s.global) - 1; i >= 0; i-- {
		row := *s.global[i]
		row.Profile = s.profileCopy(row.UserID)
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MessageExists(ctx context.Context, kind models.MessageKind, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case models.MessageKindPrivate:
		for _, m := range s.private {
			if m.ID == id {
				return true, nil
			}
		}
	case models.MessageKindGlobal:
		for _, m := range s.global {
			if m.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) CreateReport(ctx context.Context, r *models.MessageReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = newID(r.ID)
	r.CreatedAt = s.now()
	row := *r
	s.reports = append(s.reports, &row)
	return nil
}

// Reports returns every recorded report, oldest first.
func (s *Store) Reports() []models.MessageReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MessageReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out
}
