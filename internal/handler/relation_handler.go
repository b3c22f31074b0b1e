package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/relationship"
)

// region --- DTOs ---

// SendRequestInput names the profile a request is addressed to.
type SendRequestInput struct {
	AddresseeID string `json:"addressee_id" binding:"required,uuid" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
}

// PendingCountResponse is the incoming request badge count.
type PendingCountResponse struct {
	Count int64 `json:"count" example:"3"`
}

// ConversationResponse names the conversation shared with a friend.
type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// endregion

// ListFriends godoc
// @Summary      List friends
// @Description  Returns accepted friendships with the friend's profile and the shared conversation when one exists.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   relationship.Friend
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /friends [get]
func (h *Handler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, "handler.ListFriends", err)
		return
	}
	if friends == nil {
		friends = []relationship.Friend{}
	}
	c.JSON(http.StatusOK, friends)
}

// ListIncoming godoc
// @Summary      List incoming requests
// @Description  Returns pending requests addressed to the viewer, newest first.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   relationship.Request
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/incoming [get]
func (h *Handler) ListIncoming(c *gin.Context) {
	h.listRequests(c, "handler.ListIncoming", h.friends.ListIncoming)
}

// ListOutgoing godoc
// @Summary      List outgoing requests
// @Description  Returns pending requests sent by the viewer, newest first.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   relationship.Request
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/outgoing [get]
func (h *Handler) ListOutgoing(c *gin.Context) {
	h.listRequests(c, "handler.ListOutgoing", h.friends.ListOutgoing)
}

func (h *Handler) listRequests(c *gin.Context, function string, list func(ctx context.Context, viewerID string) ([]relationship.Request, error)) {
	requests, err := list(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, function, err)
		return
	}
	if requests == nil {
		requests = []relationship.Request{}
	}
	c.JSON(http.StatusOK, requests)
}

// PendingCount godoc
// @Summary      Count incoming requests
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PendingCountResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends/requests/count [get]
func (h *Handler) PendingCount(c *gin.Context) {
	n, err := h.friends.PendingCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, "handler.PendingCount", err)
		return
	}
	c.JSON(http.StatusOK, PendingCountResponse{Count: n})
}

// SendRequest godoc
// @Summary      Send a friend request
// @Description  Creates a pending request from the viewer to the addressee.
// @Tags         friendship
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body SendRequestInput true "Addressee"
// @Success      201  {object}  models.Friendship
// @Failure      400  {object}  ErrorResponse "Invalid input or request to self"
// @Failure      404  {object}  ErrorResponse "Addressee not found"
// @Failure      409  {object}  ErrorResponse "An active request already exists"
// @Router       /friends/requests [post]
func (h *Handler) SendRequest(c *gin.Context) {
	var input SendRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.friends.SendRequest(c.Request.Context(), auth.UserID(c), input.AddresseeID)
	if err != nil {
		respondError(c, "handler.SendRequest", err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// CancelRequest godoc
// @Summary      Cancel a friend request
// @Description  The requester withdraws a pending request.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friendship ID"
// @Success      200  {object}  models.Friendship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /friends/requests/{id}/cancel [post]
func (h *Handler) CancelRequest(c *gin.Context) {
	h.transition(c, "handler.CancelRequest", h.friends.CancelRequest)
}

// AcceptRequest godoc
// @Summary      Accept a friend request
// @Description  The addressee accepts a pending request; the pair's conversation is created.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friendship ID"
// @Success      200  {object}  models.Friendship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /friends/requests/{id}/accept [post]
func (h *Handler) AcceptRequest(c *gin.Context) {
	h.transition(c, "handler.AcceptRequest", h.friends.AcceptRequest)
}

// RejectRequest godoc
// @Summary      Reject a friend request
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friendship ID"
// @Success      200  {object}  models.Friendship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /friends/requests/{id}/reject [post]
func (h *Handler) RejectRequest(c *gin.Context) {
	h.transition(c, "handler.RejectRequest", h.friends.RejectRequest)
}

// RemoveFriend godoc
// @Summary      Remove a friend
// @Description  Either party ends an accepted friendship.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friendship ID"
// @Success      200  {object}  models.Friendship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /friends/{id}/remove [post]
func (h *Handler) RemoveFriend(c *gin.Context) {
	h.transition(c, "handler.RemoveFriend", h.friends.RemoveFriend)
}

func (h *Handler) transition(c *gin.Context, function string, apply func(ctx context.Context, actorID, friendshipID string) (*models.Friendship, error)) {
	f, err := apply(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, function, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// OpenConversation godoc
// @Summary      Open the conversation with a friend
// @Description  Returns the conversation shared with the friend, creating it if the accept step did not.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friendship ID"
// @Success      200  {object}  ConversationResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /friends/{id}/conversation [post]
func (h *Handler) OpenConversation(c *gin.Context) {
	id, err := h.friends.OpenConversation(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, "handler.OpenConversation", err)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{ConversationID: id})
}
