// Package conversation links friends to their shared conversation and
// carries the messaging operations on top of it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// Linker maps an unordered pair of users to a single conversation. It is safe
// to call repeatedly and concurrently for the same pair: the store refuses a
// second conversation with the same pair key, and the loser of the race gets
// the winner's row.
type Linker struct {
	store Store
}

// NewLinker returns a linker over s.
func NewLinker(s Store) *Linker {
	return &Linker{store: s}
}

// FindOrCreateConversation returns the conversation shared by a and b,
// creating it with both memberships when none exists.
func (l *Linker) FindOrCreateConversation(ctx context.Context, userA, userB string) (string, error) {
	if err := validPair(userA, userB); err != nil {
		return "", err
	}

	id, err := l.FindConversation(ctx, userA, userB)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	key := models.PairKey(userA, userB)
	conv := &models.Conversation{PairKey: &key}
	err = l.store.CreateConversation(ctx, conv, userA, userB)
	switch {
	case err == nil:
		logrus.WithFields(logrus.Fields{
			"function":        "Linker.FindOrCreateConversation",
			"conversation_id": conv.ID,
		}).Info("Created conversation")
		return conv.ID, nil
	case errors.Is(err, store.ErrConflict):
		existing, ferr := l.store.FindConversationByPair(ctx, key)
		if ferr != nil {
			return "", apperr.Transport(ferr)
		}
		return existing.ID, nil
	default:
		return "", apperr.Transport(err)
	}
}

// FindConversation returns the oldest conversation containing both users, or
// apperr.ErrNotFound. It never creates one.
func (l *Linker) FindConversation(ctx context.Context, userA, userB string) (string, error) {
	if err := validPair(userA, userB); err != nil {
		return "", err
	}

	ofA, err := l.store.MembershipsOf(ctx, userA)
	if err != nil {
		return "", apperr.Transport(err)
	}
	if len(ofA) == 0 {
		return "", fmt.Errorf("%w: no conversation for pair", apperr.ErrNotFound)
	}
	ofB, err := l.store.MembershipsOf(ctx, userB)
	if err != nil {
		return "", apperr.Transport(err)
	}

	shared := make(map[string]struct{}, len(ofB))
	for _, m := range ofB {
		shared[m.ConversationID] = struct{}{}
	}

	var (
		bestID string
		bestAt time.Time
	)
	for _, m := range ofA {
		if _, ok := shared[m.ConversationID]; !ok {
			continue
		}
		at := createdAt(m)
		if bestID == "" || at.Before(bestAt) || (at.Equal(bestAt) && m.ConversationID < bestID) {
			bestID, bestAt = m.ConversationID, at
		}
	}
	if bestID == "" {
		return "", fmt.Errorf("%w: no conversation for pair", apperr.ErrNotFound)
	}
	return bestID, nil
}

func createdAt(m models.ConversationMember) time.Time {
	if m.Conversation != nil && !m.Conversation.CreatedAt.IsZero() {
		return m.Conversation.CreatedAt
	}
	return m.JoinedAt
}

func validPair(a, b string) error {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return apperr.Invalid("both users are required")
	}
	if a == b {
		return apperr.Invalid("a conversation needs two different users")
	}
	return nil
}
