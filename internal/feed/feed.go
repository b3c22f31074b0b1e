// Package feed carries row-level change notifications from the stores to
// whoever listens: realtime sessions, badge counters, other server instances.
//
// Delivery is at-least-once with best-effort ordering. Subscribers must be
// idempotent and must treat the feed as the source of truth over any local
// optimistic state.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the kind of change an Event describes.
type EventType string

const (
	EventInsert    EventType = "INSERT"
	EventUpdate    EventType = "UPDATE"
	EventBroadcast EventType = "BROADCAST"
)

// Table names events are published under.
const (
	TableFriendships         = "friendships"
	TablePrivateMessages     = "private_messages"
	TableGlobalMessages      = "global_messages"
	TableConversationMembers = "conversation_members"
	TableTyping              = "typing"
)

// Event is a single change notification.
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	NewRow json.RawMessage `json:"new"`
	At     time.Time       `json:"at"`
}

// NewEvent encodes row as the event payload.
func NewEvent(table string, typ EventType, row any) (Event, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return Event{}, fmt.Errorf("feed: encode %s row: %w", table, err)
	}
	return Event{Table: table, Type: typ, NewRow: payload, At: time.Now().UTC()}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.NewRow) == 0 {
		return fmt.Errorf("feed: %s %s event has no row", e.Table, e.Type)
	}
	return json.Unmarshal(e.NewRow, v)
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber hands out subscriptions filtered by table and event type.
// No types means every type on the table.
type Subscriber interface {
	Subscribe(table string, types ...EventType) *Subscription
}

// Feed is a full publish/subscribe channel.
type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
