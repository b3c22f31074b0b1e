package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageKind names the room a reported message lives in.
type MessageKind string

const (
	MessageKindGlobal  MessageKind = "global"
	MessageKindPrivate MessageKind = "private"
)

// PrivateMessage is a message inside a two-party conversation.
type PrivateMessage struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"type:uuid;not null;index:idx_private_messages_conv_created,priority:1" json:"conversation_id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Content        string    `gorm:"not null" json:"content"`
	ClientToken    *string   `gorm:"size:64" json:"client_token,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_private_messages_conv_created,priority:2" json:"created_at"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profiles,omitempty"`
}

// BeforeCreate assigns an id when the caller did not.
func (m *PrivateMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ItemID returns the confirmed row id.
func (m PrivateMessage) ItemID() string { return m.ID }

// CorrelationToken returns the token echoed from the sender, or "".
func (m PrivateMessage) CorrelationToken() string {
	if m.ClientToken == nil {
		return ""
	}
	return *m.ClientToken
}

// GlobalMessage is a message in the single public room.
type GlobalMessage struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Content     string    `gorm:"not null" json:"content"`
	ImageURL    *string   `gorm:"size:512" json:"image_url"`
	ClientToken *string   `gorm:"size:64" json:"client_token,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profiles,omitempty"`
}

// BeforeCreate assigns an id when the caller did not.
func (m *GlobalMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ItemID returns the confirmed row id.
func (m GlobalMessage) ItemID() string { return m.ID }

// CorrelationToken returns the token echoed from the sender, or "".
func (m GlobalMessage) CorrelationToken() string {
	if m.ClientToken == nil {
		return ""
	}
	return *m.ClientToken
}

// MessageReport records a user flagging a message.
type MessageReport struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID  string      `gorm:"type:uuid;not null;index" json:"reporter_id"`
	MessageID   string      `gorm:"type:uuid;not null;index" json:"message_id"`
	MessageType MessageKind `gorm:"type:varchar(20);not null" json:"message_type"`
	Reason      string      `gorm:"not null" json:"reason"`
	CreatedAt   time.Time   `json:"created_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (r *MessageReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
