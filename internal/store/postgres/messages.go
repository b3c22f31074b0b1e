package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/rivofx/newpulse/internal/models"
)

func (s *Store) CreatePrivateMessage(ctx context.Context, m *models.PrivateMessage) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *Store) ListPrivateMessages(ctx context.Context, conversationID string, limit int) ([]models.PrivateMessage, error) {
	q := s.db.WithContext(ctx).
		Preload("Profile").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.PrivateMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) LatestPrivateMessage(ctx context.Context, conversationID string) (*models.PrivateMessage, error) {
	var m models.PrivateMessage
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) CountMessagesAfter(ctx context.Context, conversationID, excludeUserID string, after *time.Time) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.PrivateMessage{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, excludeUserID)
	if after != nil {
		q = q.Where("created_at > ?", *after)
	}

	var n int64
	err := q.Count(&n).Error
	return n, translate(err)
}

func (s *Store) CreateGlobalMessage(ctx context.Context, m *models.GlobalMessage) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *Store) ListGlobalMessages(ctx context.Context, limit int) ([]models.GlobalMessage, error) {
	q := s.db.WithContext(ctx).
		Preload("Profile").
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.GlobalMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) MessageExists(ctx context.Context, kind models.MessageKind, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	var model interface{}
	switch kind {
	case models.MessageKindPrivate:
		model = &models.PrivateMessage{}
	case models.MessageKindGlobal:
		model = &models.GlobalMessage{}
	default:
		return false, nil
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Store) CreateReport(ctx context.Context, r *models.MessageReport) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}
