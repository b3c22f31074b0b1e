package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/models"
)

// region --- DTOs ---

// SendMessageInput is a message posted to a conversation. ClientToken is
// echoed on the stored message.
type SendMessageInput struct {
	Content     string `json:"content" binding:"required,notblank" example:"gg"`
	ClientToken string `json:"client_token" binding:"omitempty,max=64"`
}

// GlobalMessageInput is a message posted to the public room.
type GlobalMessageInput struct {
	Content     string `json:"content" binding:"required,notblank" example:"anyone up for ranked?"`
	ImageURL    string `json:"image_url" binding:"omitempty,url,max=512"`
	ClientToken string `json:"client_token" binding:"omitempty,max=64"`
}

// ReportInput flags a message.
type ReportInput struct {
	MessageID   string `json:"message_id" binding:"required"`
	MessageType string `json:"message_type" binding:"required,oneof=global private" example:"global"`
	Reason      string `json:"reason" binding:"max=500"`
}

// PrivateMessageList is the documented shape of a conversation page.
type PrivateMessageList = ListResponse[models.PrivateMessage]

// GlobalMessageList is the documented shape of a public room page.
type GlobalMessageList = ListResponse[models.GlobalMessage]

// endregion

// region --- Conversation Handlers ---

// ListConversations godoc
// @Summary      List conversations
// @Description  Summarises the viewer's conversations with the last message and unread count, most recent first.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   conversation.Summary
// @Failure      401  {object}  ErrorResponse
// @Router       /conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	summaries, err := h.messages.ListConversations(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, "handler.ListConversations", err)
		return
	}
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	c.JSON(http.StatusOK, summaries)
}

// ListMessages godoc
// @Summary      List conversation messages
// @Description  Returns the newest messages of a conversation, oldest first.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Conversation ID"
// @Param        limit  query     int     false  "Maximum number of messages" default(50)
// @Success      200    {object}  PrivateMessageList
// @Failure      403    {object}  ErrorResponse
// @Router       /conversations/{id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	limit := limitQuery(c)
	msgs, err := h.messages.ListPrivateMessages(c.Request.Context(), auth.UserID(c), c.Param("id"), limit)
	if err != nil {
		respondError(c, "handler.ListMessages", err)
		return
	}
	c.JSON(http.StatusOK, NewListResponse(msgs, limit))
}

// SendMessage godoc
// @Summary      Send a message
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string            true  "Conversation ID"
// @Param        input  body      SendMessageInput  true  "Message"
// @Success      201    {object}  models.PrivateMessage
// @Failure      400    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      429    {object}  ErrorResponse
// @Router       /conversations/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.SendPrivateMessage(c.Request.Context(), auth.UserID(c), c.Param("id"), input.Content, input.ClientToken)
	if err != nil {
		respondError(c, "handler.SendMessage", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead godoc
// @Summary      Mark a conversation read
// @Description  Moves the viewer's read watermark to now, resetting the unread count.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  models.ConversationMember
// @Failure      403  {object}  ErrorResponse
// @Router       /conversations/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	m, err := h.messages.MarkRead(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, "handler.MarkRead", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// endregion

// region --- Global Room Handlers ---

// ListGlobalMessages godoc
// @Summary      List public room messages
// @Description  Returns the newest messages of the public room, oldest first. A token is optional.
// @Tags         global
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of messages" default(50)
// @Success      200    {object}  GlobalMessageList
// @Router       /global/messages [get]
func (h *Handler) ListGlobalMessages(c *gin.Context) {
	limit := limitQuery(c)
	msgs, err := h.messages.ListGlobalMessages(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "handler.ListGlobalMessages", err)
		return
	}
	c.JSON(http.StatusOK, NewListResponse(msgs, limit))
}

// SendGlobalMessage godoc
// @Summary      Post to the public room
// @Tags         global
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      GlobalMessageInput  true  "Message"
// @Success      201    {object}  models.GlobalMessage
// @Failure      400    {object}  ErrorResponse
// @Failure      429    {object}  ErrorResponse
// @Router       /global/messages [post]
func (h *Handler) SendGlobalMessage(c *gin.Context) {
	var input GlobalMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.SendGlobalMessage(c.Request.Context(), auth.UserID(c), input.Content, input.ImageURL, input.ClientToken)
	if err != nil {
		respondError(c, "handler.SendGlobalMessage", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ReportMessage godoc
// @Summary      Report a message
// @Tags         global
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input  body      ReportInput  true  "Report"
// @Success      201    {object}  models.MessageReport
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /reports [post]
func (h *Handler) ReportMessage(c *gin.Context) {
	var input ReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.messages.ReportMessage(c.Request.Context(), auth.UserID(c), input.MessageID, models.MessageKind(input.MessageType), input.Reason)
	if err != nil {
		respondError(c, "handler.ReportMessage", err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// endregion
