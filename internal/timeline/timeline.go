// Package timeline keeps a message list with optimistic placeholders.
//
// A sender adds a placeholder carrying a client-generated correlation token,
// the store echoes the token on the confirmed row, and the feed delivers that
// row back. Confirmation swaps the placeholder for the row with the exact same
// token. Content and sender are never used for matching.
package timeline

import (
	"sync"

	"github.com/google/uuid"
)

// Item is anything the timeline can hold.
type Item interface {
	ItemID() string
	CorrelationToken() string
}

// Entry is one slot in the timeline.
type Entry[T Item] struct {
	Item    T
	Token   string
	Pending bool
}

// Timeline is safe for concurrent use.
type Timeline[T Item] struct {
	mu        sync.Mutex
	entries   []Entry[T]
	confirmed map[string]struct{}
	limit     int
}

// New returns an empty timeline seeded with already confirmed items.
func New[T Item](initial ...T) *Timeline[T] {
	t := &Timeline[T]{confirmed: make(map[string]struct{})}
	for _, item := range initial {
		t.Confirm(item)
	}
	return t
}

// NewBounded returns a timeline that keeps at most limit entries. The oldest
// confirmed entries are evicted first, together with their ids; placeholders
// are never evicted.
func NewBounded[T Item](limit int, initial ...T) *Timeline[T] {
	t := &Timeline[T]{confirmed: make(map[string]struct{}), limit: limit}
	for _, item := range initial {
		t.Confirm(item)
	}
	return t
}

// NewToken returns a fresh correlation token.
func NewToken() string {
	return uuid.NewString()
}

// Add appends a placeholder for item under token.
func (t *Timeline[T]) Add(token string, item T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry[T]{Item: item, Token: token, Pending: true})
	t.evict()
}

// Confirm records a delivered item. It replaces the placeholder whose token
// matches, or appends when there is none. It returns false when the item was
// already confirmed, which happens with at-least-once delivery.
func (t *Timeline[T]) Confirm(item T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := item.ItemID()
	if _, ok := t.confirmed[id]; ok {
		return false
	}
	t.confirmed[id] = struct{}{}

	if token := item.CorrelationToken(); token != "" {
		for i := range t.entries {
			e := &t.entries[i]
			if e.Pending && e.Token == token {
				e.Item = item
				e.Pending = false
				return true
			}
		}
	}
	t.entries = append(t.entries, Entry[T]{Item: item, Token: item.CorrelationToken()})
	t.evict()
	return true
}

// evict drops the oldest confirmed entries beyond the limit. Callers hold mu.
func (t *Timeline[T]) evict() {
	excess := len(t.entries) - t.limit
	if t.limit <= 0 || excess <= 0 {
		return
	}

	kept := t.entries[:0]
	for _, e := range t.entries {
		if excess > 0 && !e.Pending {
			delete(t.confirmed, e.Item.ItemID())
			excess--
			continue
		}
		kept = append(kept, e)
	}
	var zero Entry[T]
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = zero
	}
	t.entries = kept
}

// Rollback drops the placeholder for token after its send failed.
func (t *Timeline[T]) Rollback(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Pending && e.Token == token {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns a copy of the current timeline in display order.
func (t *Timeline[T]) Entries() []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry[T], len(t.entries))
	copy(out, t.entries)
	return out
}

// Pending reports how many placeholders are still waiting.
func (t *Timeline[T]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.Pending {
			n++
		}
	}
	return n
}

// Len is the number of entries, pending or not.
func (t *Timeline[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
