package memory

import (
	"context"
	"sort"

	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/store"
)

// CreateFriendship inserts f unless an active record already links the pair.
func (s *Store) CreateFriendship(ctx context.Context, f *models.Friendship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()

	if _, ok := s.profiles[f.RequesterID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if _, ok := s.profiles[f.AddresseeID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for _, existing := range s.friendships {
		if existing.Status.IsActive() && existing.Links(f.RequesterID, f.AddresseeID) {
			s.mu.Unlock()
			return store.ErrConflict
		}
	}

	f.ID = newID(f.ID)
	if f.Status == "" {
		f.Status = models.StatusPending
	}
	now := s.now()
	f.CreatedAt, f.UpdatedAt = now, now

	row := *f
	row.Requester, row.Addressee = nil, nil
	s.friendships[f.ID] = &row
	event := row
	s.mu.Unlock()

	s.publish(ctx, feed.TableFriendships, feed.EventInsert, event)
	return nil
}

func (s *Store) GetFriendship(ctx context.Context, id string) (*models.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.friendships[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.withProfiles(*f)
	return &out, nil
}

// FindFriendships returns matching records with both profiles attached,
// newest first.
func (s *Store) FindFriendships(ctx context.Context, filter relationship.FriendshipFilter) ([]models.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Friendship
	for _, f := range s.friendships {
		if matches(f, filter) {
			out = append(out, s.withProfiles(*f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountFriendships(ctx context.Context, filter relationship.FriendshipFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, f := range s.friendships {
		if matches(f, filter) {
			n++
		}
	}
	return n, nil
}

// UpdateFriendshipStatus moves the record to status to only if it is still
// in status from.
func (s *Store) UpdateFriendshipStatus(ctx context.Context, id string, from, to models.FriendshipStatus) (*models.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()

	f, ok := s.friendships[id]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	if f.Status != from {
		s.mu.Unlock()
		return nil, store.ErrStale
	}
	f.Status = to
	f.UpdatedAt = s.now()

	event := *f
	out := s.withProfiles(*f)
	s.mu.Unlock()

	s.publish(ctx, feed.TableFriendships, feed.EventUpdate, event)
	return &out, nil
}

func (s *Store) withProfiles(f models.Friendship) models.Friendship {
	f.Requester = s.profileCopy(f.RequesterID)
	f.Addressee = s.profileCopy(f.AddresseeID)
	return f
}

func matches(f *models.Friendship, filter relationship.FriendshipFilter) bool {
	if filter.UserID != "" && !f.Involves(filter.UserID) {
		return false
	}
	if filter.RequesterID != "" && f.RequesterID != filter.RequesterID {
		return false
	}
	if filter.AddresseeID != "" && f.AddresseeID != filter.AddresseeID {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, st := range filter.Statuses {
		if f.Status == st {
			return true
		}
	}
	return false
}
