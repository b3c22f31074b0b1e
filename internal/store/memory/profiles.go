package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// CreateProfile inserts p. Emails are unique without regard to case.
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(p.Email)
	if _, taken := s.emails[email]; taken {
		return store.ErrConflict
	}
	p.ID = newID(p.ID)
	if _, taken := s.profiles[p.ID]; taken {
		return store.ErrConflict
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	cp := *p
	s.profiles[p.ID] = &cp
	s.emails[email] = p.ID
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.profileCopy(id)
	if p == nil {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.profileCopy(id), nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, u account.ProfileUpdate) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.AvatarURL != nil {
		p.AvatarURL = optional(*u.AvatarURL)
	}
	if u.Status != nil {
		p.Status = optional(*u.Status)
	}
	p.UpdatedAt = s.now()

	cp := *p
	return &cp, nil
}

// SearchProfiles matches display names case-insensitively, ordered by
// lowercased name.
func (s *Store) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []models.Profile
	for id, p := range s.profiles {
		if id == excludeID || !strings.Contains(strings.ToLower(p.DisplayName), needle) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
