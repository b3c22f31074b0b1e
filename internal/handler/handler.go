package handler

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/ratelimit"
	"github.com/rivofx/newpulse/internal/relationship"
)

// Handler serves the /api/v1 routes.
type Handler struct {
	accounts *account.Service
	friends  *relationship.Manager
	messages *conversation.Service
	limiter  ratelimit.Keyed
}

// New returns a Handler. limiter may be nil to disable HTTP send limits.
func New(accounts *account.Service, friends *relationship.Manager, messages *conversation.Service, limiter ratelimit.Keyed) *Handler {
	registerValidators()
	return &Handler{
		accounts: accounts,
		friends:  friends,
		messages: messages,
		limiter:  limiter,
	}
}

// RegisterRoutes mounts every route on api.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
	}

	protected := api.Group("")
	protected.Use(auth.AuthMiddleware(h.accounts))
	{
		protected.GET("/me", h.GetMe)
		protected.PUT("/me", h.UpdateMe)
		protected.GET("/users/search", h.SearchUsers)

		friends := protected.Group("/friends")
		{
			friends.GET("", h.ListFriends)
			friends.GET("/requests/incoming", h.ListIncoming)
			friends.GET("/requests/outgoing", h.ListOutgoing)
			friends.GET("/requests/count", h.PendingCount)
			friends.POST("/requests", h.SendRequest)
			friends.POST("/requests/:id/cancel", h.CancelRequest)
			friends.POST("/requests/:id/accept", h.AcceptRequest)
			friends.POST("/requests/:id/reject", h.RejectRequest)
			friends.POST("/:id/remove", h.RemoveFriend)
			friends.POST("/:id/conversation", h.OpenConversation)
		}

		protected.GET("/conversations", h.ListConversations)
		conv := protected.Group("/conversations/:id")
		conv.Use(auth.MemberMiddleware(h.messages, "id"))
		{
			conv.GET("/messages", h.ListMessages)
			conv.POST("/messages", h.sendLimit(), h.SendMessage)
			conv.POST("/read", h.MarkRead)
		}

		protected.POST("/global/messages", h.sendLimit(), h.SendGlobalMessage)
		protected.POST("/reports", h.ReportMessage)
	}

	api.GET("/global/messages", auth.OptionalAuthMiddleware(h.accounts), h.ListGlobalMessages)
}

func (h *Handler) sendLimit() gin.HandlerFunc {
	if h.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RateLimitMiddleware(h.limiter, "messages")
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrSelfRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotAuthorized), errors.Is(err, apperr.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateRequest),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrTransportFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, function string, err error) {
	code := statusFor(err)
	message := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		message = apperr.ErrTransportFailure.Error()
	case http.StatusInternalServerError:
		message = "Internal server error"
	}
	if code >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"userID":   auth.UserID(c),
			"error":    err.Error(),
		}).Error("Request failed")
	}
	c.JSON(code, gin.H{"error": message})
}

var validatorsOnce sync.Once

// registerValidators adds the custom binding tags used by the DTOs.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("notblank", notBlank); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "handler.registerValidators",
				"error":    err.Error(),
			}).Error("Failed to register validator")
		}
	})
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
