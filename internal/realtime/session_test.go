package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/ratelimit"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/store/memory"
)

type chanSink chan any

func (c chanSink) Send(frame any) error {
	c <- frame
	return nil
}

func (c chanSink) next(t *testing.T) any {
	t.Helper()
	select {
	case f := <-c:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func (c chanSink) none(t *testing.T) {
	t.Helper()
	select {
	case f := <-c:
		t.Fatalf("unexpected frame %#v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

type countingSnapshots struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSnapshots) Snapshot(context.Context, string) (*relationship.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &relationship.Snapshot{}, nil
}

type fakeMessenger struct {
	mu      sync.Mutex
	members map[string]bool
	fail    error
	seq     int
	sent    []models.PrivateMessage
	global  []models.GlobalMessage
}

func (f *fakeMessenger) IsMember(_ context.Context, conversationID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[conversationID+"/"+userID], nil
}

func (f *fakeMessenger) SendPrivateMessage(_ context.Context, senderID, conversationID, content, clientToken string) (*models.PrivateMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.seq++
	token := clientToken
	m := models.PrivateMessage{
		ID:             fmt.Sprintf("msg-%d", f.seq),
		ConversationID: conversationID,
		UserID:         senderID,
		Content:        content,
		ClientToken:    &token,
		CreatedAt:      time.Now().UTC(),
	}
	f.sent = append(f.sent, m)
	return &m, nil
}

func (f *fakeMessenger) SendGlobalMessage(_ context.Context, senderID, content, _, clientToken string) (*models.GlobalMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.seq++
	token := clientToken
	m := models.GlobalMessage{
		ID:          fmt.Sprintf("global-%d", f.seq),
		UserID:      senderID,
		Content:     content,
		ClientToken: &token,
		CreatedAt:   time.Now().UTC(),
	}
	f.global = append(f.global, m)
	return &m, nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func newTestSession(t *testing.T, userID string, hub *feed.Hub, msgs *fakeMessenger, max int) (*Session, chanSink) {
	t.Helper()
	sink := make(chanSink, 16)
	limiter := ratelimit.New(max, ratelimit.DefaultWindow, fixedClock(time.Unix(1_700_000_000, 0)))
	return NewSession(userID, sink, &countingSnapshots{}, msgs, hub, limiter), sink
}

func event(t *testing.T, table string, typ feed.EventType, row any) feed.Event {
	t.Helper()
	e, err := feed.NewEvent(table, typ, row)
	require.NoError(t, err)
	return e
}

func TestSessionFriendshipEvents(t *testing.T) {
	hub := feed.NewHub(0)
	snapshots := &countingSnapshots{}
	sink := make(chanSink, 16)
	s := NewSession("alice", sink, snapshots, &fakeMessenger{}, hub, ratelimit.New(0, 0, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subs := s.subscribe()
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, subs) }()

	first, ok := sink.next(t).(FriendsFrame)
	require.True(t, ok)
	assert.Equal(t, FrameFriends, first.Type)

	require.NoError(t, hub.Publish(ctx, event(t, feed.TableFriendships, feed.EventInsert,
		models.Friendship{ID: "f-0", RequesterID: "bob", AddresseeID: "alice", Status: models.StatusPending})))
	_, ok = sink.next(t).(FriendsFrame)
	assert.True(t, ok)

	require.NoError(t, hub.Publish(ctx, event(t, feed.TableFriendships, feed.EventUpdate,
		models.Friendship{ID: "f-1", RequesterID: "bob", AddresseeID: "carol", Status: models.StatusAccepted})))
	sink.none(t)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 2, snapshots.calls)
}

func TestSessionStopsWhenFeedCloses(t *testing.T) {
	hub := feed.NewHub(0)
	s, sink := newTestSession(t, "alice", hub, &fakeMessenger{}, 5)
	subs := s.subscribe()
	done := make(chan error, 1)
	go func() { done <- s.serve(context.Background(), subs) }()

	sink.next(t)
	require.NoError(t, hub.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}
}

func TestSessionSendConfirmsOnce(t *testing.T) {
	hub := feed.NewHub(0)
	msgs := &fakeMessenger{members: map[string]bool{"conv-1/alice": true}}
	s, sink := newTestSession(t, "alice", hub, msgs, 5)
	ctx := context.Background()

	s.HandleFrame(ctx, []byte(`{"type":"send","conversation_id":"conv-1","content":"gg","client_token":"tok-1"}`))

	frame, ok := sink.next(t).(MessageFrame)
	require.True(t, ok)
	assert.Equal(t, "msg-1", frame.Message.ID)
	assert.Equal(t, "tok-1", frame.Message.CorrelationToken())

	// The same row arriving through the feed is a duplicate.
	s.HandleEvent(ctx, event(t, feed.TablePrivateMessages, feed.EventInsert, msgs.sent[0]))
	sink.none(t)

	entries := s.Entries("conv-1")
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.Equal(t, "msg-1", entries[0].Item.ID)
}

func TestSessionSendGeneratesToken(t *testing.T) {
	msgs := &fakeMessenger{members: map[string]bool{"conv-1/alice": true}}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 5)

	s.HandleFrame(context.Background(), []byte(`{"type":"send","conversation_id":"conv-1","content":"hi"}`))

	frame := sink.next(t).(MessageFrame)
	assert.NotEmpty(t, frame.Message.CorrelationToken())
	assert.Len(t, s.Entries("conv-1"), 1)
}

func TestSessionSendFailureRollsBack(t *testing.T) {
	msgs := &fakeMessenger{fail: apperr.ErrNotMember}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 5)

	s.HandleFrame(context.Background(), []byte(`{"type":"send","conversation_id":"conv-9","content":"hi","client_token":"tok-2"}`))

	frame, ok := sink.next(t).(FailureFrame)
	require.True(t, ok)
	assert.Equal(t, FrameSendFailed, frame.Type)
	assert.Equal(t, "tok-2", frame.ClientToken)
	assert.Equal(t, "conv-9", frame.ConversationID)
	assert.Empty(t, s.Entries("conv-9"))
}

func TestSessionRateLimited(t *testing.T) {
	msgs := &fakeMessenger{members: map[string]bool{"conv-1/alice": true}}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 1)
	ctx := context.Background()

	s.HandleFrame(ctx, []byte(`{"type":"send","conversation_id":"conv-1","content":"one"}`))
	_, ok := sink.next(t).(MessageFrame)
	require.True(t, ok)

	s.HandleFrame(ctx, []byte(`{"type":"send","conversation_id":"conv-1","content":"two","client_token":"tok-3"}`))
	frame, ok := sink.next(t).(FailureFrame)
	require.True(t, ok)
	assert.Equal(t, FrameRateLimited, frame.Type)
	assert.Equal(t, "tok-3", frame.ClientToken)
	assert.Len(t, msgs.sent, 1)
	assert.Len(t, s.Entries("conv-1"), 1)
}

func TestSessionIgnoresOtherConversations(t *testing.T) {
	msgs := &fakeMessenger{members: map[string]bool{}}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 5)
	ctx := context.Background()
	m := models.PrivateMessage{ID: "m-1", ConversationID: "conv-2", UserID: "bob", Content: "hey"}

	s.HandleEvent(ctx, event(t, feed.TablePrivateMessages, feed.EventInsert, m))
	sink.none(t)

	// Joining the conversation clears the cached non-membership.
	s.HandleEvent(ctx, event(t, feed.TableConversationMembers, feed.EventInsert,
		models.ConversationMember{ConversationID: "conv-2", UserID: "alice"}))
	m.ID = "m-2"
	s.HandleEvent(ctx, event(t, feed.TablePrivateMessages, feed.EventInsert, m))

	frame := sink.next(t).(MessageFrame)
	assert.Equal(t, "m-2", frame.Message.ID)
}

func TestSessionTyping(t *testing.T) {
	hub := feed.NewHub(0)
	msgs := &fakeMessenger{members: map[string]bool{"conv-1/alice": true, "conv-1/bob": true}}
	alice, aliceSink := newTestSession(t, "alice", hub, msgs, 5)
	bob, bobSink := newTestSession(t, "bob", hub, msgs, 5)
	ctx := context.Background()

	sub := hub.Subscribe(feed.TableTyping, feed.EventBroadcast)
	defer sub.Close()

	alice.HandleFrame(ctx, []byte(`{"type":"typing","conversation_id":"conv-1"}`))
	var e feed.Event
	select {
	case e = <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("typing was not broadcast")
	}
	assert.Equal(t, feed.EventBroadcast, e.Type)

	bob.HandleEvent(ctx, e)
	frame := bobSink.next(t).(TypingFrame)
	assert.Equal(t, "alice", frame.UserID)

	alice.HandleEvent(ctx, e)
	aliceSink.none(t)

	alice.HandleFrame(ctx, []byte(`{"type":"typing","conversation_id":"conv-7"}`))
	failure := aliceSink.next(t).(FailureFrame)
	assert.Equal(t, FrameError, failure.Type)
}

func TestSessionRejectsBadFrames(t *testing.T) {
	s, sink := newTestSession(t, "alice", feed.NewHub(0), &fakeMessenger{}, 5)

	s.HandleFrame(context.Background(), []byte(`not json`))
	assert.Equal(t, FrameError, sink.next(t).(FailureFrame).Type)

	s.HandleFrame(context.Background(), []byte(`{"type":"dance"}`))
	assert.Equal(t, FrameError, sink.next(t).(FailureFrame).Type)
}

func TestSessionForwardsGlobalMessages(t *testing.T) {
	hub := feed.NewHub(0)
	defer hub.Close()
	st := memory.New(hub)
	s, sink := newTestSession(t, "alice", hub, &fakeMessenger{}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subs := s.subscribe()
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, subs) }()
	_, ok := sink.next(t).(FriendsFrame)
	require.True(t, ok)

	require.NoError(t, st.CreateGlobalMessage(ctx, &models.GlobalMessage{UserID: "bob", Content: "hello room"}))

	frame, ok := sink.next(t).(GlobalMessageFrame)
	require.True(t, ok)
	assert.Equal(t, FrameGlobal, frame.Type)
	assert.Equal(t, "bob", frame.Message.UserID)
	assert.Equal(t, "hello room", frame.Message.Content)
	assert.Len(t, s.GlobalEntries(), 1)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionSendGlobalConfirmsOnce(t *testing.T) {
	msgs := &fakeMessenger{}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 5)
	ctx := context.Background()

	s.HandleFrame(ctx, []byte(`{"type":"send","room":"global","content":"gg all","client_token":"tok-g"}`))

	frame, ok := sink.next(t).(GlobalMessageFrame)
	require.True(t, ok)
	assert.Equal(t, "global-1", frame.Message.ID)
	assert.Equal(t, "tok-g", frame.Message.CorrelationToken())

	s.HandleEvent(ctx, event(t, feed.TableGlobalMessages, feed.EventInsert, msgs.global[0]))
	sink.none(t)

	entries := s.GlobalEntries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.Empty(t, msgs.sent)
}

func TestSessionSendGlobalFailureRollsBack(t *testing.T) {
	msgs := &fakeMessenger{fail: apperr.ErrInvalidInput}
	s, sink := newTestSession(t, "alice", feed.NewHub(0), msgs, 5)

	s.HandleFrame(context.Background(), []byte(`{"type":"send","room":"global","content":" ","client_token":"tok-x"}`))

	frame, ok := sink.next(t).(FailureFrame)
	require.True(t, ok)
	assert.Equal(t, FrameSendFailed, frame.Type)
	assert.Equal(t, GlobalRoom, frame.Room)
	assert.Equal(t, "tok-x", frame.ClientToken)
	assert.Empty(t, s.GlobalEntries())
}

func TestSessionGlobalTyping(t *testing.T) {
	hub := feed.NewHub(0)
	// Nobody is a member of anything; the public room needs no membership.
	msgs := &fakeMessenger{members: map[string]bool{}}
	alice, aliceSink := newTestSession(t, "alice", hub, msgs, 5)
	bob, bobSink := newTestSession(t, "bob", hub, msgs, 5)
	ctx := context.Background()

	sub := hub.Subscribe(feed.TableTyping, feed.EventBroadcast)
	defer sub.Close()

	alice.HandleFrame(ctx, []byte(`{"type":"typing","room":"global"}`))
	var e feed.Event
	select {
	case e = <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("typing was not broadcast")
	}
	aliceSink.none(t)

	bob.HandleEvent(ctx, e)
	frame := bobSink.next(t).(TypingFrame)
	assert.Equal(t, GlobalRoom, frame.Room)
	assert.Equal(t, "alice", frame.UserID)
	assert.Empty(t, frame.ConversationID)

	alice.HandleEvent(ctx, e)
	aliceSink.none(t)
}
