package relationship

import (
	"context"

	"github.com/rivofx/newpulse/internal/models"
)

// FriendshipFilter selects friendship records. Set fields are ANDed together;
// UserID matches either party and Statuses matches any of the listed values.
type FriendshipFilter struct {
	UserID      string
	RequesterID string
	AddresseeID string
	Statuses    []models.FriendshipStatus
}

// Store is the durable table of friendship records.
//
// CreateFriendship returns store.ErrConflict when an active record already
// links the pair and store.ErrNotFound when either profile does not exist.
// UpdateFriendshipStatus is a compare-and-set: it returns store.ErrStale when
// the record is no longer in status from.
type Store interface {
	CreateFriendship(ctx context.Context, f *models.Friendship) error
	GetFriendship(ctx context.Context, id string) (*models.Friendship, error)
	FindFriendships(ctx context.Context, filter FriendshipFilter) ([]models.Friendship, error)
	CountFriendships(ctx context.Context, filter FriendshipFilter) (int64, error)
	UpdateFriendshipStatus(ctx context.Context, id string, from, to models.FriendshipStatus) (*models.Friendship, error)
	SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error)
}

// Linker maps a pair of users to their shared conversation.
type Linker interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (string, error)
	FindConversation(ctx context.Context, userA, userB string) (string, error)
}

// LinkRetrier schedules a later FindOrCreateConversation for a pair whose
// link step failed after an accept.
type LinkRetrier interface {
	EnqueueLink(ctx context.Context, userA, userB string) error
}
