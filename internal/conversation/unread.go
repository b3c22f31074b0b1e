package conversation

import (
	"context"
	"time"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/models"
)

// CountUnread counts messages not written by the viewer that arrived after
// lastReadAt, or every such message when lastReadAt is nil.
func CountUnread(messages []models.PrivateMessage, viewerID string, lastReadAt *time.Time) int {
	n := 0
	for _, m := range messages {
		if m.UserID == viewerID {
			continue
		}
		if lastReadAt != nil && !m.CreatedAt.After(*lastReadAt) {
			continue
		}
		n++
	}
	return n
}

// ComputeUnreadCount applies the CountUnread rule in the store.
func (l *Linker) ComputeUnreadCount(ctx context.Context, conversationID, viewerID string, lastReadAt *time.Time) (int64, error) {
	n, err := l.store.CountMessagesAfter(ctx, conversationID, viewerID, lastReadAt)
	if err != nil {
		return 0, apperr.Transport(err)
	}
	return n, nil
}
