package postgres

import (
	"context"
	"strings"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, u account.ProfileUpdate) (*models.Profile, error) {
	updates := map[string]interface{}{}
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.AvatarURL != nil {
		updates["avatar_url"] = nullable(*u.AvatarURL)
	}
	if u.Status != nil {
		updates["status"] = nullable(*u.Status)
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, store.ErrNotFound
		}
	}
	return s.GetProfile(ctx, id)
}

// SearchProfiles matches display names case-insensitively, ordered by name.
func (s *Store) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error) {
	q := s.db.WithContext(ctx).
		Where("display_name ILIKE ?", "%"+escapeLike(query)+"%").
		Order("LOWER(display_name) ASC").
		Order("id ASC")
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var profiles []models.Profile
	if err := q.Find(&profiles).Error; err != nil {
		return nil, translate(err)
	}
	return profiles, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
