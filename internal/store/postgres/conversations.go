package postgres

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// CreateConversation inserts the conversation and its memberships in one
// transaction; the unique pair_key index turns a lost race into ErrConflict.
func (s *Store) CreateConversation(ctx context.Context, c *models.Conversation, memberIDs ...string) error {
	members := make([]models.ConversationMember, 0, len(memberIDs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(c).Error; err != nil {
			return err
		}
		for _, uid := range memberIDs {
			members = append(members, models.ConversationMember{ConversationID: c.ID, UserID: uid})
		}
		if len(members) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&members).Error
	})
	if err != nil {
		return translate(err)
	}

	c.Members = members
	for _, m := range members {
		publish(ctx, s.pub, feed.TableConversationMembers, feed.EventInsert, m)
	}
	return nil
}

func (s *Store) FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.db.WithContext(ctx).First(&c, "pair_key = ?", pairKey).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) MembershipsOf(ctx context.Context, userID string) ([]models.ConversationMember, error) {
	var out []models.ConversationMember
	err := s.db.WithContext(ctx).
		Preload("Conversation").
		Where("user_id = ?", userID).
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return convCreatedAt(out[i]).Before(convCreatedAt(out[j]))
	})
	return out, nil
}

func convCreatedAt(m models.ConversationMember) time.Time {
	if m.Conversation != nil {
		return m.Conversation.CreatedAt
	}
	return m.JoinedAt
}

func (s *Store) GetMembership(ctx context.Context, conversationID, userID string) (*models.ConversationMember, error) {
	var m models.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) ConversationMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error) {
	var out []models.ConversationMember
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("conversation_id = ?", conversationID).
		Order("user_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Store) SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) (*models.ConversationMember, error) {
	var m models.ConversationMember
	res := s.db.WithContext(ctx).
		Model(&m).
		Clauses(clause.Returning{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at.UTC())
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	publish(ctx, s.pub, feed.TableConversationMembers, feed.EventUpdate, m)
	return &m, nil
}
