package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendshipStatus defines the state of a directed friendship record.
type FriendshipStatus string

const (
	// StatusPending means a friend request has been sent but not yet answered.
	StatusPending FriendshipStatus = "pending"

	// StatusAccepted means the addressee accepted and the users are friends.
	StatusAccepted FriendshipStatus = "accepted"

	// StatusRejected means the addressee declined, or either party unfriended
	// after an accept. Terminal.
	StatusRejected FriendshipStatus = "rejected"

	// StatusCancelled means the requester withdrew the request. Terminal.
	StatusCancelled FriendshipStatus = "cancelled"
)

// ActiveStatuses are the statuses that count towards the one-active-record-per-pair rule.
var ActiveStatuses = []FriendshipStatus{StatusPending, StatusAccepted}

// IsActive reports whether s blocks a new request between the same pair.
func (s FriendshipStatus) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// IsTerminal reports whether no further transition is possible from s.
func (s FriendshipStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Friendship is a directed edge from the requester to the addressee.
// Rows are never deleted; a terminal row is superseded by a new one.
type Friendship struct {
	ID          string           `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID string           `gorm:"type:uuid;not null;index" json:"requester_id"`
	AddresseeID string           `gorm:"type:uuid;not null;index" json:"addressee_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Requester *Profile `gorm:"foreignKey:RequesterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"requester,omitempty"`
	Addressee *Profile `gorm:"foreignKey:AddresseeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"addressee,omitempty"`
}

// BeforeCreate assigns an id when the caller did not.
func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Involves reports whether userID is either party of the record.
func (f Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Links reports whether the record connects a and b in either direction.
func (f Friendship) Links(a, b string) bool {
	return (f.RequesterID == a && f.AddresseeID == b) || (f.RequesterID == b && f.AddresseeID == a)
}

// OtherParty returns the id of the party that is not userID.
func (f Friendship) OtherParty(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
