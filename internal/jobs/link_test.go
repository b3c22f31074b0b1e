package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivofx/newpulse/internal/apperr"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", Type: task.Type()}, nil
}

func TestNewLinkTaskSortsPair(t *testing.T) {
	ab, err := NewLinkTask("a", "b")
	require.NoError(t, err)
	ba, err := NewLinkTask("b", "a")
	require.NoError(t, err)

	assert.Equal(t, TypeConversationLink, ab.Type())
	assert.Equal(t, ab.Payload(), ba.Payload())

	var p LinkPayload
	require.NoError(t, json.Unmarshal(ab.Payload(), &p))
	assert.Equal(t, LinkPayload{UserA: "a", UserB: "b"}, p)
}

func TestEnqueueLinkOptions(t *testing.T) {
	q := &fakeEnqueuer{}
	r := NewLinkRetrier(q, "links")

	require.NoError(t, r.EnqueueLink(context.Background(), "b", "a"))
	require.Len(t, q.tasks, 1)

	types := map[asynq.OptionType]interface{}{}
	for _, o := range q.opts[0] {
		types[o.Type()] = o.Value()
	}
	assert.Equal(t, linkMaxRetry, types[asynq.MaxRetryOpt])
	assert.Equal(t, linkUniqueTTL, types[asynq.UniqueOpt])
	assert.Equal(t, "links", types[asynq.QueueOpt])
}

func TestEnqueueLinkDuplicateIsSuccess(t *testing.T) {
	r := NewLinkRetrier(&fakeEnqueuer{err: asynq.ErrDuplicateTask}, "")
	assert.NoError(t, r.EnqueueLink(context.Background(), "a", "b"))

	r = NewLinkRetrier(&fakeEnqueuer{err: errors.New("redis down")}, "")
	assert.Error(t, r.EnqueueLink(context.Background(), "a", "b"))
}

type fakeLinker struct {
	calls [][2]string
	err   error
}

func (f *fakeLinker) FindOrCreateConversation(_ context.Context, a, b string) (string, error) {
	f.calls = append(f.calls, [2]string{a, b})
	return "conv-1", f.err
}

func TestHandleLinkTask(t *testing.T) {
	linker := &fakeLinker{}
	h := HandleLinkTask(linker)

	task, err := NewLinkTask("bob", "alice")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, [][2]string{{"alice", "bob"}}, linker.calls)
}

func TestHandleLinkTaskRetryPolicy(t *testing.T) {
	task, err := NewLinkTask("a", "b")
	require.NoError(t, err)

	transient := HandleLinkTask(&fakeLinker{err: apperr.Transport(errors.New("timeout"))})
	err = transient.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	invalid := HandleLinkTask(&fakeLinker{err: apperr.Invalid("bad pair")})
	assert.ErrorIs(t, invalid.ProcessTask(context.Background(), task), asynq.SkipRetry)

	malformed := asynq.NewTask(TypeConversationLink, []byte("{"))
	assert.ErrorIs(t, transient.ProcessTask(context.Background(), malformed), asynq.SkipRetry)
}
