package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/store"
)

// CreateFriendship relies on idx_friendships_active_pair to refuse a second
// active record for the pair.
func (s *Store) CreateFriendship(ctx context.Context, f *models.Friendship) error {
	if f.Status == "" {
		f.Status = models.StatusPending
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(f).Error)
}

func (s *Store) GetFriendship(ctx context.Context, id string) (*models.Friendship, error) {
	var f models.Friendship
	err := s.db.WithContext(ctx).
		Preload("Requester").
		Preload("Addressee").
		First(&f, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *Store) FindFriendships(ctx context.Context, filter relationship.FriendshipFilter) ([]models.Friendship, error) {
	var out []models.Friendship
	err := applyFilter(s.db.WithContext(ctx), filter).
		Preload("Requester").
		Preload("Addressee").
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) CountFriendships(ctx context.Context, filter relationship.FriendshipFilter) (int64, error) {
	var n int64
	err := applyFilter(s.db.WithContext(ctx).Model(&models.Friendship{}), filter).Count(&n).Error
	return n, translate(err)
}

// UpdateFriendshipStatus is a conditional UPDATE on (id, status). Zero rows
// affected means the record is gone or has already moved.
func (s *Store) UpdateFriendshipStatus(ctx context.Context, id string, from, to models.FriendshipStatus) (*models.Friendship, error) {
	var f models.Friendship
	res := s.db.WithContext(ctx).
		Model(&f).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetFriendship(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrStale
	}
	return s.GetFriendship(ctx, id)
}

func applyFilter(q *gorm.DB, filter relationship.FriendshipFilter) *gorm.DB {
	if filter.UserID != "" {
		q = q.Where("(requester_id = ? OR addressee_id = ?)", filter.UserID, filter.UserID)
	}
	if filter.RequesterID != "" {
		q = q.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.AddresseeID != "" {
		q = q.Where("addressee_id = ?", filter.AddresseeID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	return q
}
