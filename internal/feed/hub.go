package feed

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 64

// Subscription receives the events of one table. C is closed when the
// subscription or its hub is closed.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	table string
	types map[EventType]bool
	hub   *Hub
	once  sync.Once
}

// Close detaches the subscription from its hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

func (s *Subscription) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Hub is the in-process feed. It manages subscriptions per table.
type Hub struct {
	tables map[string]map[*Subscription]struct{}
	buffer int
	closed bool
	mu     sync.RWMutex
}

var _ Feed = (*Hub)(nil)

// NewHub creates a new Hub. A buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		tables: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe adds a new subscriber to a table.
func (h *Hub) Subscribe(table string, types ...EventType) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, table: table, hub: h}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}
	if _, ok := h.tables[table]; !ok {
		h.tables[table] = make(map[*Subscription]struct{})
	}
	h.tables[table][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.tables[sub.table]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.ch)
			if len(subs) == 0 {
				delete(h.tables, sub.table)
			}
		}
	}
}

// Publish sends an event to all subscribers of its table.
func (h *Hub) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.tables[e.Table] {
		if !sub.wants(e.Type) {
			continue
		}
		// Non-blocking send so a slow subscriber cannot stall the hub.
		select {
		case sub.ch <- e:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "Hub.Publish",
				"table":    e.Table,
				"type":     e.Type,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Close closes every subscription. Later subscriptions are returned closed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for table, subs := range h.tables {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.tables, table)
	}
	return nil
}
