package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile represents a user of the service.
type Profile struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName  string    `gorm:"size:255;not null;index" json:"display_name"`
	Email        string    `gorm:"size:255;unique;not null" json:"-"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	AvatarURL    *string   `gorm:"size:512" json:"avatar_url"`
	Status       *string   `gorm:"size:255" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
