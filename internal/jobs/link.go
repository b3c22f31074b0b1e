// Package jobs runs background work on asynq. Its one task retries the link
// step of an accept: creating the conversation for a freshly accepted pair.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/apperr"
)

// TypeConversationLink is the queue task name for linking a conversation.
const TypeConversationLink = "conversation:link"

const (
	linkMaxRetry  = 10
	linkUniqueTTL = 10 * time.Minute
	linkTimeout   = 10 * time.Second
)

// LinkPayload is the JSON payload of a link task. The pair is stored sorted
// so both orders of the same pair dedupe to one task.
type LinkPayload struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

// NewLinkTask builds a link task for the pair {a, b}.
func NewLinkTask(a, b string) (*asynq.Task, error) {
	if b < a {
		a, b = b, a
	}
	payload, err := json.Marshal(LinkPayload{UserA: a, UserB: b})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeConversationLink, payload), nil
}

// Enqueuer is the part of *asynq.Client the retrier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// LinkRetrier enqueues link tasks.
type LinkRetrier struct {
	client Enqueuer
	queue  string
}

// NewLinkRetrier returns a retrier enqueuing on queue ("" means default).
func NewLinkRetrier(client Enqueuer, queue string) *LinkRetrier {
	return &LinkRetrier{client: client, queue: queue}
}

// EnqueueLink schedules a link task. A task already queued for the same pair
// counts as success.
func (r *LinkRetrier) EnqueueLink(ctx context.Context, userA, userB string) error {
	task, err := NewLinkTask(userA, userB)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(linkMaxRetry),
		asynq.Unique(linkUniqueTTL),
		asynq.Timeout(linkTimeout),
	}
	if r.queue != "" {
		opts = append(opts, asynq.Queue(r.queue))
	}

	info, err := r.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue %s: %w", TypeConversationLink, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "LinkRetrier.EnqueueLink",
		"task_id":  info.ID,
		"queue":    info.Queue,
	}).Info("Enqueued conversation link retry")
	return nil
}

// ConversationLinker is what a link task calls.
type ConversationLinker interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (string, error)
}

// HandleLinkTask returns the handler for link tasks. FindOrCreateConversation
// is idempotent, so redelivery is harmless.
func HandleLinkTask(linker ConversationLinker) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p LinkPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// malformed payload: do not retry
			return fmt.Errorf("jobs: decode link payload: %v: %w", err, asynq.SkipRetry)
		}

		convID, err := linker.FindOrCreateConversation(ctx, p.UserA, p.UserB)
		if err != nil {
			if errors.Is(err, apperr.ErrInvalidInput) {
				return fmt.Errorf("jobs: %v: %w", err, asynq.SkipRetry)
			}
			return err
		}

		logrus.WithFields(logrus.Fields{
			"function":        "HandleLinkTask",
			"conversation_id": convID,
		}).Info("Linked conversation")
		return nil
	}
}
