// Package realtime serves the websocket that pushes relationship snapshots,
// confirmed private and public-room messages, and typing notices to a
// signed-in user.
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/ratelimit"
)

// Server upgrades authenticated requests to sessions.
type Server struct {
	upgrader websocket.Upgrader
	friends  SnapshotSource
	messages Messenger
	feed     feed.Feed

	rateMax    int
	rateWindow time.Duration
}

// NewServer returns a websocket server. Each session gets its own limiter
// allowing rateMax sends per rateWindow.
func NewServer(friends SnapshotSource, messages Messenger, f feed.Feed, rateMax int, rateWindow time.Duration) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		friends:    friends,
		messages:   messages,
		feed:       f,
		rateMax:    rateMax,
		rateWindow: rateWindow,
	}
}

// Handle godoc
// @Summary      Open the realtime socket
// @Description  Upgrades to a websocket. The token may be passed as a query parameter.
// @Tags         realtime
// @Security     BearerAuth
// @Param        token  query  string  false  "JWT when the Authorization header cannot be set"
// @Success      101
// @Failure      401  {object}  handler.ErrorResponse
// @Router       /ws [get]
func (s *Server) Handle(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "realtime.Server.Handle",
			"userID":   userID,
			"error":    err.Error(),
		}).Warn("Websocket upgrade failed")
		return
	}

	conn := NewConnection(userID, ws)
	conn.Start()
	session := NewSession(userID, conn, s.friends, s.messages, s.feed,
		ratelimit.New(s.rateMax, s.rateWindow, ratelimit.SystemClock{}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer conn.Close(websocket.CloseNormalClosure, "")
		if err := session.Run(ctx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "realtime.Session.Run",
				"userID":   userID,
				"error":    err.Error(),
			}).Warn("Session stopped")
		}
	}()
	go func() {
		<-conn.Done()
		cancel()
	}()

	logrus.WithFields(logrus.Fields{
		"function":     "realtime.Server.Handle",
		"userID":       userID,
		"connectionID": conn.ID,
	}).Info("Session opened")

	err = conn.ReadLoop(func(raw []byte) {
		session.HandleFrame(ctx, raw)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "realtime.Connection.ReadLoop",
			"connectionID": conn.ID,
			"error":        err.Error(),
		}).Warn("Unexpected close")
	}
	cancel()
	conn.Close(websocket.CloseNormalClosure, "")
}
