package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// DefaultPageSize is how many messages a list returns when no limit is given.
const DefaultPageSize = 50

// Summary is one row of the viewer's conversation list.
type Summary struct {
	ID          string                 `json:"id"`
	OtherUser   *models.Profile        `json:"other_user"`
	LastMessage *models.PrivateMessage `json:"last_message"`
	UnreadCount int64                  `json:"unread_count"`
	LastReadAt  *time.Time             `json:"last_read_at"`
}

// Service handles private and global messages.
type Service struct {
	store    Store
	linker   *Linker
	pageSize int
	now      func() time.Time
}

// NewService returns a message service. A pageSize <= 0 uses DefaultPageSize.
func NewService(s Store, linker *Linker, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		store:    s,
		linker:   linker,
		pageSize: pageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IsMember reports whether userID belongs to the conversation.
func (s *Service) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := s.store.GetMembership(ctx, conversationID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, apperr.Transport(err)
	}
}

func (s *Service) membership(ctx context.Context, conversationID, userID string) (*models.ConversationMember, error) {
	m, err := s.store.GetMembership(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrNotMember
		}
		return nil, apperr.Transport(err)
	}
	return m, nil
}

// SendPrivateMessage stores a message from a member. clientToken is echoed
// on the stored row so the sender can reconcile its placeholder.
func (s *Service) SendPrivateMessage(ctx context.Context, senderID, conversationID, content, clientToken string) (*models.PrivateMessage, error) {
	content, err := CleanContent(content)
	if err != nil {
		return nil, err
	}
	token, err := cleanToken(clientToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &models.PrivateMessage{
		ConversationID: conversationID,
		UserID:         senderID,
		Content:        content,
		ClientToken:    token,
	}
	if err := s.store.CreatePrivateMessage(ctx, msg); err != nil {
		return nil, apperr.Transport(err)
	}
	return msg, nil
}

// ListPrivateMessages returns the newest limit messages, oldest first.
func (s *Service) ListPrivateMessages(ctx context.Context, viewerID, conversationID string, limit int) ([]models.PrivateMessage, error) {
	if _, err := s.membership(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListPrivateMessages(ctx, conversationID, s.limit(limit))
	if err != nil {
		return nil, apperr.Transport(err)
	}
	reverse(msgs)
	return msgs, nil
}

// MarkRead advances the viewer's read watermark to now.
func (s *Service) MarkRead(ctx context.Context, viewerID, conversationID string) (*models.ConversationMember, error) {
	if _, err := s.membership(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	m, err := s.store.SetLastRead(ctx, conversationID, viewerID, s.now())
	if err != nil {
		return nil, apperr.Transport(err)
	}
	return m, nil
}

// ListConversations summarises every conversation of the viewer, most
// recent activity first.
func (s *Service) ListConversations(ctx context.Context, viewerID string) ([]Summary, error) {
	memberships, err := s.store.MembershipsOf(ctx, viewerID)
	if err != nil {
		return nil, apperr.Transport(err)
	}

	summaries := make([]Summary, 0, len(memberships))
	for _, mine := range memberships {
		sum := Summary{ID: mine.ConversationID, LastReadAt: mine.LastReadAt}

		members, err := s.store.ConversationMembers(ctx, mine.ConversationID)
		if err != nil {
			return nil, apperr.Transport(err)
		}
		for _, m := range members {
			if m.UserID != viewerID {
				sum.OtherUser = m.Profile
				if sum.OtherUser == nil {
					sum.OtherUser = &models.Profile{ID: m.UserID}
				}
				break
			}
		}

		last, err := s.store.LatestPrivateMessage(ctx, mine.ConversationID)
		switch {
		case err == nil:
			sum.LastMessage = last
			sum.UnreadCount, err = s.linker.ComputeUnreadCount(ctx, mine.ConversationID, viewerID, mine.LastReadAt)
			if err != nil {
				return nil, err
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, apperr.Transport(err)
		}

		summaries = append(summaries, sum)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return activity(summaries[i]).After(activity(summaries[j]))
	})
	return summaries, nil
}

func activity(s Summary) time.Time {
	if s.LastMessage == nil {
		return time.Time{}
	}
	return s.LastMessage.CreatedAt
}

// SendGlobalMessage posts to the public room.
func (s *Service) SendGlobalMessage(ctx context.Context, senderID, content, imageURL, clientToken string) (*models.GlobalMessage, error) {
	content, err := CleanContent(content)
	if err != nil {
		return nil, err
	}
	token, err := cleanToken(clientToken)
	if err != nil {
		return nil, err
	}

	msg := &models.GlobalMessage{
		UserID:      senderID,
		Content:     content,
		ClientToken: token,
	}
	if imageURL = strings.TrimSpace(imageURL); imageURL != "" {
		msg.ImageURL = &imageURL
	}
	if err := s.store.CreateGlobalMessage(ctx, msg); err != nil {
		return nil, apperr.Transport(err)
	}
	return msg, nil
}

// ListGlobalMessages returns the newest limit messages of the public room,
// oldest first.
func (s *Service) ListGlobalMessages(ctx context.Context, limit int) ([]models.GlobalMessage, error) {
	msgs, err := s.store.ListGlobalMessages(ctx, s.limit(limit))
	if err != nil {
		return nil, apperr.Transport(err)
	}
	reverse(msgs)
	return msgs, nil
}

// ReportMessage records that reporterID flagged a message.
func (s *Service) ReportMessage(ctx context.Context, reporterID, messageID string, kind models.MessageKind, reason string) (*models.MessageReport, error) {
	if kind != models.MessageKindGlobal && kind != models.MessageKindPrivate {
		return nil, apperr.Invalid("unknown message type %q", kind)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "User report"
	}

	ok, err := s.store.MessageExists(ctx, kind, messageID)
	if err != nil {
		return nil, apperr.Transport(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}

	r := &models.MessageReport{
		ReporterID:  reporterID,
		MessageID:   messageID,
		MessageType: kind,
		Reason:      reason,
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, apperr.Transport(err)
	}
	return r, nil
}

func (s *Service) limit(n int) int {
	if n <= 0 || n > s.pageSize {
		return s.pageSize
	}
	return n
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
