// Package memory is an in-process store. It enforces the same uniqueness
// rules as the PostgreSQL adapter and publishes the same change events, so
// it serves both as a development driver and as the fake backend in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/relationship"
)

// Store keeps every table in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	profiles map[string]*models.Profile
	emails   map[string]string

	friendships map[string]*models.Friendship

	conversations map[string]*models.Conversation
	pairs         map[string]string
	members       map[string]map[string]*models.ConversationMember

	private []*models.PrivateMessage
	global  []*models.GlobalMessage
	reports []*models.MessageReport

	last time.Time
	pub  feed.Publisher
}

var (
	_ relationship.Store = (*Store)(nil)
	_ conversation.Store = (*Store)(nil)
	_ account.Store      = (*Store)(nil)
)

// New returns an empty store publishing change events to pub. A nil pub
// drops them.
func New(pub feed.Publisher) *Store {
	if pub == nil {
		pub = feed.Discard
	}
	return &Store{
		profiles:      make(map[string]*models.Profile),
		emails:        make(map[string]string),
		friendships:   make(map[string]*models.Friendship),
		conversations: make(map[string]*models.Conversation),
		pairs:         make(map[string]string),
		members:       make(map[string]map[string]*models.ConversationMember),
		pub:           pub,
	}
}

// now returns a UTC timestamp strictly after every one handed out before.
// Callers hold the write lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// observe moves the clock past t so rows created later sort after it.
// Callers hold the write lock.
func (s *Store) observe(t time.Time) {
	if t.After(s.last) {
		s.last = t
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// publish is called after the lock is released.
func (s *Store) publish(ctx context.Context, table string, typ feed.EventType, row any) {
	e, err := feed.NewEvent(table, typ, row)
	if err == nil {
		err = s.pub.Publish(ctx, e)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "memory.Store.publish",
			"table":    table,
			"error":    err.Error(),
		}).Warn("Failed to publish change event")
	}
}

func (s *Store) profileCopy(id string) *models.Profile {
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}
