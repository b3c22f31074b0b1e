package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/ratelimit"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/timeline"
)

// Sink receives outbound frames. *Connection is the production sink.
type Sink interface {
	Send(frame any) error
}

// SnapshotSource rebuilds the viewer's relationship view.
type SnapshotSource interface {
	Snapshot(ctx context.Context, viewerID string) (*relationship.Snapshot, error)
}

// Messenger stores messages on behalf of the session.
type Messenger interface {
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	SendPrivateMessage(ctx context.Context, senderID, conversationID, content, clientToken string) (*models.PrivateMessage, error)
	SendGlobalMessage(ctx context.Context, senderID, content, imageURL, clientToken string) (*models.GlobalMessage, error)
}

// historyLimit bounds every timeline a session keeps, one page of messages.
const historyLimit = 50

// Session is one viewer's live connection: it turns feed events into frames
// and inbound frames into sends.
type Session struct {
	userID   string
	sink     Sink
	friends  SnapshotSource
	messages Messenger
	feed     feed.Feed
	limiter  *ratelimit.Limiter

	mu        sync.Mutex
	member    map[string]bool
	timelines map[string]*timeline.Timeline[models.PrivateMessage]
	global    *timeline.Timeline[models.GlobalMessage]
}

// NewSession returns a session for userID. Every session owns its limiter.
func NewSession(userID string, sink Sink, friends SnapshotSource, messages Messenger, f feed.Feed, limiter *ratelimit.Limiter) *Session {
	return &Session{
		userID:    userID,
		sink:      sink,
		friends:   friends,
		messages:  messages,
		feed:      f,
		limiter:   limiter,
		member:    make(map[string]bool),
		timelines: make(map[string]*timeline.Timeline[models.PrivateMessage]),
		global:    timeline.NewBounded[models.GlobalMessage](historyLimit),
	}
}

// Run sends the initial snapshot and forwards feed events until ctx is done
// or the feed closes.
func (s *Session) Run(ctx context.Context) error {
	return s.serve(ctx, s.subscribe())
}

func (s *Session) subscribe() []*feed.Subscription {
	return []*feed.Subscription{
		s.feed.Subscribe(feed.TableFriendships, feed.EventInsert, feed.EventUpdate),
		s.feed.Subscribe(feed.TablePrivateMessages, feed.EventInsert),
		s.feed.Subscribe(feed.TableConversationMembers, feed.EventInsert),
		s.feed.Subscribe(feed.TableTyping, feed.EventBroadcast),
		s.feed.Subscribe(feed.TableGlobalMessages, feed.EventInsert),
	}
}

func (s *Session) serve(ctx context.Context, subs []*feed.Subscription) error {
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	if err := s.sendSnapshot(ctx); err != nil {
		return err
	}

	friendships, messages, members, typing, global := subs[0].C, subs[1].C, subs[2].C, subs[3].C, subs[4].C
	for {
		var (
			e  feed.Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case e, ok = <-friendships:
		case e, ok = <-messages:
		case e, ok = <-members:
		case e, ok = <-typing:
		case e, ok = <-global:
		}
		if !ok {
			return nil
		}
		s.HandleEvent(ctx, e)
	}
}

// HandleEvent reacts to one feed event.
func (s *Session) HandleEvent(ctx context.Context, e feed.Event) {
	var err error
	switch e.Table {
	case feed.TableFriendships:
		err = s.onFriendship(ctx, e)
	case feed.TablePrivateMessages:
		err = s.onMessage(ctx, e)
	case feed.TableConversationMembers:
		err = s.onMembership(e)
	case feed.TableTyping:
		err = s.onTyping(ctx, e)
	case feed.TableGlobalMessages:
		err = s.onGlobalMessage(e)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Session.HandleEvent",
			"userID":   s.userID,
			"table":    e.Table,
			"error":    err.Error(),
		}).Warn("Failed to handle change event")
	}
}

func (s *Session) onFriendship(ctx context.Context, e feed.Event) error {
	var f models.Friendship
	if err := e.Decode(&f); err != nil {
		return err
	}
	if !f.Involves(s.userID) {
		return nil
	}
	return s.sendSnapshot(ctx)
}

func (s *Session) sendSnapshot(ctx context.Context) error {
	snap, err := s.friends.Snapshot(ctx, s.userID)
	if err != nil {
		return err
	}
	return s.sink.Send(FriendsFrame{Type: FrameFriends, Snapshot: snap})
}

func (s *Session) onMessage(ctx context.Context, e feed.Event) error {
	var m models.PrivateMessage
	if err := e.Decode(&m); err != nil {
		return err
	}
	ok, err := s.isMember(ctx, m.ConversationID)
	if err != nil || !ok {
		return err
	}
	return s.confirm(m)
}

func (s *Session) onGlobalMessage(e feed.Event) error {
	var m models.GlobalMessage
	if err := e.Decode(&m); err != nil {
		return err
	}
	return s.confirmGlobal(m)
}

func (s *Session) onMembership(e feed.Event) error {
	var m models.ConversationMember
	if err := e.Decode(&m); err != nil {
		return err
	}
	if m.UserID == s.userID {
		s.mu.Lock()
		s.member[m.ConversationID] = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) onTyping(ctx context.Context, e feed.Event) error {
	var t Typing
	if err := e.Decode(&t); err != nil {
		return err
	}
	if t.UserID == s.userID {
		return nil
	}
	if t.Room == GlobalRoom {
		return s.sink.Send(TypingFrame{Type: FrameTyping, Room: GlobalRoom, UserID: t.UserID})
	}
	ok, err := s.isMember(ctx, t.ConversationID)
	if err != nil || !ok {
		return err
	}
	return s.sink.Send(TypingFrame{Type: FrameTyping, ConversationID: t.ConversationID, UserID: t.UserID})
}

// HandleFrame processes one inbound client frame.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.fail(FrameError, in, "malformed frame")
		return
	}

	switch in.Type {
	case FrameSend:
		s.send(ctx, in)
	case FrameTyping:
		s.typing(ctx, in)
	default:
		s.fail(FrameError, in, "unknown frame type")
	}
}

func (s *Session) send(ctx context.Context, in Inbound) {
	if err := s.limiter.Allow(); err != nil {
		s.fail(FrameRateLimited, in, err.Error())
		return
	}

	token := strings.TrimSpace(in.ClientToken)
	if token == "" {
		token = timeline.NewToken()
		in.ClientToken = token
	}
	if in.Room == GlobalRoom {
		s.sendGlobal(ctx, in, token)
		return
	}

	tl := s.timeline(in.ConversationID)
	tl.Add(token, models.PrivateMessage{
		ConversationID: in.ConversationID,
		UserID:         s.userID,
		Content:        in.Content,
		ClientToken:    &token,
		CreatedAt:      time.Now().UTC(),
	})

	msg, err := s.messages.SendPrivateMessage(ctx, s.userID, in.ConversationID, in.Content, token)
	if err != nil {
		tl.Rollback(token)
		s.fail(FrameSendFailed, in, err.Error())
		return
	}

	s.mu.Lock()
	s.member[in.ConversationID] = true
	s.mu.Unlock()
	if err := s.confirm(*msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Session.send",
			"userID":   s.userID,
			"error":    err.Error(),
		}).Warn("Failed to deliver confirmed message")
	}
}

func (s *Session) sendGlobal(ctx context.Context, in Inbound, token string) {
	s.global.Add(token, models.GlobalMessage{
		UserID:      s.userID,
		Content:     in.Content,
		ClientToken: &token,
		CreatedAt:   time.Now().UTC(),
	})

	msg, err := s.messages.SendGlobalMessage(ctx, s.userID, in.Content, "", token)
	if err != nil {
		s.global.Rollback(token)
		s.fail(FrameSendFailed, in, err.Error())
		return
	}
	if err := s.confirmGlobal(*msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Session.sendGlobal",
			"userID":   s.userID,
			"error":    err.Error(),
		}).Warn("Failed to deliver confirmed message")
	}
}

// typing broadcasts a typing notice. The public room needs no membership.
func (s *Session) typing(ctx context.Context, in Inbound) {
	notice := Typing{UserID: s.userID}
	if in.Room == GlobalRoom {
		notice.Room = GlobalRoom
	} else {
		ok, err := s.isMember(ctx, in.ConversationID)
		if err != nil || !ok {
			s.fail(FrameError, in, "not a member of this conversation")
			return
		}
		notice.ConversationID = in.ConversationID
	}

	e, err := feed.NewEvent(feed.TableTyping, feed.EventBroadcast, notice)
	if err == nil {
		err = s.feed.Publish(ctx, e)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Session.typing",
			"userID":   s.userID,
			"error":    err.Error(),
		}).Warn("Failed to broadcast typing")
	}
}

// confirm reconciles m into its timeline and forwards it once.
func (s *Session) confirm(m models.PrivateMessage) error {
	if !s.timeline(m.ConversationID).Confirm(m) {
		return nil
	}
	return s.sink.Send(MessageFrame{Type: FrameMessage, Message: m})
}

func (s *Session) confirmGlobal(m models.GlobalMessage) error {
	if !s.global.Confirm(m) {
		return nil
	}
	return s.sink.Send(GlobalMessageFrame{Type: FrameGlobal, Message: m})
}

func (s *Session) fail(frameType string, in Inbound, message string) {
	err := s.sink.Send(FailureFrame{
		Type:           frameType,
		Room:           in.Room,
		ConversationID: in.ConversationID,
		ClientToken:    in.ClientToken,
		Error:          message,
	})
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Session.fail",
			"userID":   s.userID,
			"error":    err.Error(),
		}).Warn("Failed to send frame")
	}
}

func (s *Session) isMember(ctx context.Context, conversationID string) (bool, error) {
	if conversationID == "" {
		return false, nil
	}
	s.mu.Lock()
	known, cached := s.member[conversationID]
	s.mu.Unlock()
	if cached {
		return known, nil
	}

	ok, err := s.messages.IsMember(ctx, conversationID, s.userID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	// A membership event may have landed while the lookup ran.
	if !s.member[conversationID] {
		s.member[conversationID] = ok
	}
	s.mu.Unlock()
	return ok, nil
}

func (s *Session) timeline(conversationID string) *timeline.Timeline[models.PrivateMessage] {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.timelines[conversationID]
	if !ok {
		tl = timeline.NewBounded[models.PrivateMessage](historyLimit)
		s.timelines[conversationID] = tl
	}
	return tl
}

// Entries returns the session's view of a conversation, placeholders included.
func (s *Session) Entries(conversationID string) []timeline.Entry[models.PrivateMessage] {
	return s.timeline(conversationID).Entries()
}

// GlobalEntries returns the session's view of the public room.
func (s *Session) GlobalEntries() []timeline.Entry[models.GlobalMessage] {
	return s.global.Entries()
}
