package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a two-party container. PairKey holds the sorted member ids
// and is unique, so a pair can only ever own one conversation.
type Conversation struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	PairKey   *string   `gorm:"size:80;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID" json:"-"`
}

// BeforeCreate assigns an id when the caller did not.
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ConversationMember is one row per (conversation, user). LastReadAt is the
// watermark unread counts are derived from.
type ConversationMember struct {
	ConversationID string     `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         string     `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joined_at"`

	Profile      *Profile      `gorm:"foreignKey:UserID" json:"profiles,omitempty"`
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

// PairKey returns the order-independent key for the pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
