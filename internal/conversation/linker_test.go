package conversation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store/memory"
)

func newProfiles(t *testing.T, s *memory.Store, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, n := range names {
		p := &models.Profile{DisplayName: n, Email: n + "@example.com", PasswordHash: "x"}
		require.NoError(t, s.CreateProfile(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return ids
}

func TestFindOrCreateIsStable(t *testing.T) {
	s := memory.New(nil)
	ids := newProfiles(t, s, "alice", "bob", "carol")
	l := conversation.NewLinker(s)
	ctx := context.Background()

	_, err := l.FindConversation(ctx, ids[0], ids[1])
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ab, err := l.FindOrCreateConversation(ctx, ids[0], ids[1])
	require.NoError(t, err)
	again, err := l.FindOrCreateConversation(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, ab, again)

	found, err := l.FindConversation(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, ab, found)

	ac, err := l.FindOrCreateConversation(ctx, ids[0], ids[2])
	require.NoError(t, err)
	assert.NotEqual(t, ab, ac)
	assert.Equal(t, 2, s.ConversationCount())
}

func TestFindOrCreateRejectsBadPairs(t *testing.T) {
	l := conversation.NewLinker(memory.New(nil))
	ctx := context.Background()

	_, err := l.FindOrCreateConversation(ctx, "a", "a")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = l.FindOrCreateConversation(ctx, "", "b")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestConcurrentFindOrCreateYieldsOneConversation(t *testing.T) {
	s := memory.New(nil)
	ids := newProfiles(t, s, "alice", "bob")
	l := conversation.NewLinker(s)
	ctx := context.Background()

	const n = 32
	got := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := ids[0], ids[1]
			if i%2 == 1 {
				a, b = b, a
			}
			got[i], errs[i] = l.FindOrCreateConversation(ctx, a, b)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, got[0], got[i])
	}
	assert.Equal(t, 1, s.ConversationCount())
}

func TestOldestSharedConversationWins(t *testing.T) {
	s := memory.New(nil)
	ids := newProfiles(t, s, "alice", "bob")
	ctx := context.Background()

	// Legacy rows without a pair key can duplicate a pair.
	older := &models.Conversation{}
	require.NoError(t, s.CreateConversation(ctx, older, ids[0], ids[1]))
	newer := &models.Conversation{}
	require.NoError(t, s.CreateConversation(ctx, newer, ids[0], ids[1]))

	l := conversation.NewLinker(s)
	id, err := l.FindOrCreateConversation(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, older.ID, id)
	assert.Equal(t, 2, s.ConversationCount())
}
