package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID string `json:"id"`
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case e := <-sub.C:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestHubDeliversByTable(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	friends := hub.Subscribe(TableFriendships)
	messages := hub.Subscribe(TablePrivateMessages)

	e, err := NewEvent(TableFriendships, EventInsert, row{ID: "f1"})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), e))

	got := receive(t, friends)
	assert.Equal(t, TableFriendships, got.Table)
	assert.Equal(t, EventInsert, got.Type)

	var r row
	require.NoError(t, got.Decode(&r))
	assert.Equal(t, "f1", r.ID)

	assertEmpty(t, messages)
}

func TestHubFiltersEventTypes(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	updates := hub.Subscribe(TableFriendships, EventUpdate)
	all := hub.Subscribe(TableFriendships)

	insert, _ := NewEvent(TableFriendships, EventInsert, row{ID: "a"})
	update, _ := NewEvent(TableFriendships, EventUpdate, row{ID: "a"})
	require.NoError(t, hub.Publish(context.Background(), insert))
	require.NoError(t, hub.Publish(context.Background(), update))

	assert.Equal(t, EventUpdate, receive(t, updates).Type)
	assertEmpty(t, updates)

	assert.Equal(t, EventInsert, receive(t, all).Type)
	assert.Equal(t, EventUpdate, receive(t, all).Type)
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	sub := hub.Subscribe(TableGlobalMessages)
	for i := 0; i < 3; i++ {
		e, _ := NewEvent(TableGlobalMessages, EventInsert, row{ID: "m"})
		require.NoError(t, hub.Publish(context.Background(), e))
	}

	receive(t, sub)
	assertEmpty(t, sub)
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	sub := hub.Subscribe(TableTyping)
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	e, _ := NewEvent(TableTyping, EventBroadcast, row{ID: "x"})
	assert.NoError(t, hub.Publish(context.Background(), e))
}

func TestHubCloseClosesSubscriptions(t *testing.T) {
	hub := NewHub(0)
	sub := hub.Subscribe(TableFriendships)
	require.NoError(t, hub.Close())

	_, ok := <-sub.C
	assert.False(t, ok)

	late := hub.Subscribe(TableFriendships)
	_, ok = <-late.C
	assert.False(t, ok)

	// Closing a subscription after the hub is closed must not panic.
	sub.Close()
	late.Close()
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := NewEvent(TableFriendships, EventInsert, row{ID: "a"})
	assert.ErrorIs(t, hub.Publish(ctx, e), context.Canceled)
}

func TestDecodeEmptyRow(t *testing.T) {
	assert.Error(t, Event{Table: TableFriendships, Type: EventUpdate}.Decode(&row{}))
}
