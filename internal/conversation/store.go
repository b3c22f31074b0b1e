package conversation

import (
	"context"
	"time"

	"github.com/rivofx/newpulse/internal/models"
)

// Store persists conversations, memberships and messages.
//
// CreateConversation inserts the conversation and one membership per member
// id; it returns store.ErrConflict when another conversation already owns the
// pair key. Lookups return store.ErrNotFound when nothing matches. Message
// lists come back newest first.
type Store interface {
	MembershipsOf(ctx context.Context, userID string) ([]models.ConversationMember, error)
	FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, c *models.Conversation, memberIDs ...string) error
	GetMembership(ctx context.Context, conversationID, userID string) (*models.ConversationMember, error)
	ConversationMembers(ctx context.Context, conversationID string) ([]models.ConversationMember, error)
	SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) (*models.ConversationMember, error)

	CreatePrivateMessage(ctx context.Context, m *models.PrivateMessage) error
	ListPrivateMessages(ctx context.Context, conversationID string, limit int) ([]models.PrivateMessage, error)
	LatestPrivateMessage(ctx context.Context, conversationID string) (*models.PrivateMessage, error)
	CountMessagesAfter(ctx context.Context, conversationID, excludeUserID string, after *time.Time) (int64, error)

	CreateGlobalMessage(ctx context.Context, m *models.GlobalMessage) error
	ListGlobalMessages(ctx context.Context, limit int) ([]models.GlobalMessage, error)

	MessageExists(ctx context.Context, kind models.MessageKind, id string) (bool, error)
	CreateReport(ctx context.Context, r *models.MessageReport) error
}
