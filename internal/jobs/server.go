package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Server runs the asynq workers.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewClient opens an asynq client for redisURL.
func NewClient(redisURL string) (*asynq.Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return asynq.NewClient(opt), nil
}

// NewServer builds a worker server for redisURL with the link handler
// registered.
func NewServer(redisURL string, concurrency int, linker ConversationLinker) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Logger:      logrus.StandardLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithFields(logrus.Fields{
				"function": "jobs.ErrorHandler",
				"type":     task.Type(),
				"error":    err.Error(),
			}).Warn("Task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeConversationLink, HandleLinkTask(linker))

	return &Server{server: srv, mux: mux}, nil
}

// Run starts the workers and blocks until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
