package conversation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store/memory"
)

type svcFixture struct {
	store  *memory.Store
	linker *conversation.Linker
	svc    *conversation.Service
	alice  string
	bob    string
	carol  string
	convID string
}

func newSvcFixture(t *testing.T, pageSize int) *svcFixture {
	t.Helper()
	s := memory.New(nil)
	ids := newProfiles(t, s, "alice", "bob", "carol")
	l := conversation.NewLinker(s)
	convID, err := l.FindOrCreateConversation(context.Background(), ids[0], ids[1])
	require.NoError(t, err)
	return &svcFixture{
		store:  s,
		linker: l,
		svc:    conversation.NewService(s, l, pageSize),
		alice:  ids[0],
		bob:    ids[1],
		carol:  ids[2],
		convID: convID,
	}
}

func TestSendPrivateMessage(t *testing.T) {
	f := newSvcFixture(t, 0)
	ctx := context.Background()

	msg, err := f.svc.SendPrivateMessage(ctx, f.alice, f.convID, "  what the hell ", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "what the ****", msg.Content)
	assert.Equal(t, "tok-1", msg.CorrelationToken())
	assert.NotEmpty(t, msg.ID)

	_, err = f.svc.SendPrivateMessage(ctx, f.carol, f.convID, "let me in", "")
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = f.svc.SendPrivateMessage(ctx, f.alice, f.convID, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestListPrivateMessagesOldestFirst(t *testing.T) {
	f := newSvcFixture(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.SendPrivateMessage(ctx, f.alice, f.convID, fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)
	}

	msgs, err := f.svc.ListPrivateMessages(ctx, f.bob, f.convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m4", msgs[2].Content)

	msgs, err = f.svc.ListPrivateMessages(ctx, f.bob, f.convID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Content)

	_, err = f.svc.ListPrivateMessages(ctx, f.carol, f.convID, 0)
	assert.ErrorIs(t, err, apperr.ErrNotMember)
}

func TestUnreadCountResetsAfterMarkRead(t *testing.T) {
	f := newSvcFixture(t, 0)
	ctx := context.Background()

	unread := func() int64 {
		t.Helper()
		sums, err := f.svc.ListConversations(ctx, f.alice)
		require.NoError(t, err)
		require.Len(t, sums, 1)
		return sums[0].UnreadCount
	}

	assert.Zero(t, unread())

	_, err := f.svc.SendPrivateMessage(ctx, f.bob, f.convID, "one", "")
	require.NoError(t, err)
	_, err = f.svc.SendPrivateMessage(ctx, f.alice, f.convID, "mine", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread())

	_, err = f.svc.SendPrivateMessage(ctx, f.bob, f.convID, "two", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread())

	member, err := f.svc.MarkRead(ctx, f.alice, f.convID)
	require.NoError(t, err)
	require.NotNil(t, member.LastReadAt)
	assert.Zero(t, unread())

	_, err = f.svc.SendPrivateMessage(ctx, f.bob, f.convID, "three", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread())

	_, err = f.svc.MarkRead(ctx, f.carol, f.convID)
	assert.ErrorIs(t, err, apperr.ErrNotMember)
}

func TestListConversationsNewestActivityFirst(t *testing.T) {
	f := newSvcFixture(t, 0)
	ctx := context.Background()

	quiet, err := f.linker.FindOrCreateConversation(ctx, f.alice, f.carol)
	require.NoError(t, err)

	_, err = f.svc.SendPrivateMessage(ctx, f.bob, f.convID, "older", "")
	require.NoError(t, err)

	sums, err := f.svc.ListConversations(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, f.convID, sums[0].ID)
	require.NotNil(t, sums[0].OtherUser)
	assert.Equal(t, "bob", sums[0].OtherUser.DisplayName)
	require.NotNil(t, sums[0].LastMessage)
	assert.Equal(t, "older", sums[0].LastMessage.Content)

	assert.Equal(t, quiet, sums[1].ID)
	assert.Nil(t, sums[1].LastMessage)

	_, err = f.svc.SendPrivateMessage(ctx, f.carol, quiet, "newer", "")
	require.NoError(t, err)
	sums, err = f.svc.ListConversations(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, quiet, sums[0].ID)
	assert.Equal(t, "carol", sums[0].OtherUser.DisplayName)
}

func TestGlobalMessages(t *testing.T) {
	f := newSvcFixture(t, 2)
	ctx := context.Background()

	for _, c := range []string{"first", "crap second", "third"} {
		_, err := f.svc.SendGlobalMessage(ctx, f.alice, c, "", "")
		require.NoError(t, err)
	}
	withImage, err := f.svc.SendGlobalMessage(ctx, f.bob, "look", " https://img/x.png ", "tok")
	require.NoError(t, err)
	require.NotNil(t, withImage.ImageURL)
	assert.Equal(t, "https://img/x.png", *withImage.ImageURL)

	msgs, err := f.svc.ListGlobalMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "look", msgs[1].Content)
	require.NotNil(t, msgs[1].Profile)
	assert.Equal(t, "bob", msgs[1].Profile.DisplayName)
}

func TestReportMessage(t *testing.T) {
	f := newSvcFixture(t, 0)
	ctx := context.Background()

	g, err := f.svc.SendGlobalMessage(ctx, f.alice, "spam spam", "", "")
	require.NoError(t, err)

	r, err := f.svc.ReportMessage(ctx, f.bob, g.ID, models.MessageKindGlobal, "")
	require.NoError(t, err)
	assert.Equal(t, "User report", r.Reason)
	assert.Len(t, f.store.Reports(), 1)

	_, err = f.svc.ReportMessage(ctx, f.bob, g.ID, models.MessageKindPrivate, "spam")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.ReportMessage(ctx, f.bob, g.ID, "dm", "spam")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestIsMember(t *testing.T) {
	f := newSvcFixture(t, 0)
	ctx := context.Background()

	ok, err := f.svc.IsMember(ctx, f.convID, f.alice)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.IsMember(ctx, f.convID, f.carol)
	require.NoError(t, err)
	assert.False(t, ok)
}
