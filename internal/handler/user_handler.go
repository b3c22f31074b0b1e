package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/relationship"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	DisplayName string `json:"display_name" binding:"required,notblank,max=255" example:"alice"`
	Email       string `json:"email" binding:"required,email" example:"alice@example.com"`
	Password    string `json:"password" binding:"required,min=8" example:"password123"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// UpdateProfileInput carries the editable profile fields. Omitted fields are
// left unchanged; an empty avatar_url or status clears it.
type UpdateProfileInput struct {
	DisplayName *string `json:"display_name" binding:"omitempty,notblank,max=255" example:"alice"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url,max=512"`
	Status      *string `json:"status" binding:"omitempty,max=255" example:"Looking for a duo"`
}

// endregion

// region --- Auth Handlers ---

// Register godoc
// @Summary      Register a new user
// @Description  Creates a profile and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  account.Session
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), input.DisplayName, input.Email, input.Password)
	if err != nil {
		respondError(c, "handler.Register", err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// Login godoc
// @Summary      Log in a user
// @Description  Authenticates a user with email and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  account.Session
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      503  {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, "handler.Login", err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// endregion

// region --- User Handlers ---

// GetMe godoc
// @Summary      Get current user
// @Description  Returns the profile of the authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Profile
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	p, err := h.accounts.GetProfile(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, "handler.GetMe", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMe godoc
// @Summary      Update current user
// @Description  Changes the display name, avatar or status of the authenticated user.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Profile fields"
// @Success      200  {object}  models.Profile
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.accounts.UpdateProfile(c.Request.Context(), auth.UserID(c), account.ProfileUpdate{
		DisplayName: input.DisplayName,
		AvatarURL:   input.AvatarURL,
		Status:      input.Status,
	})
	if err != nil {
		respondError(c, "handler.UpdateMe", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches profiles by display name and annotates each with the viewer's relationship status.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Display name fragment"
// @Success      200  {array}   relationship.SearchResult
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/search [get]
func (h *Handler) SearchUsers(c *gin.Context) {
	results, err := h.friends.Search(c.Request.Context(), c.Query("q"), auth.UserID(c))
	if err != nil {
		respondError(c, "handler.SearchUsers", err)
		return
	}
	if results == nil {
		results = []relationship.SearchResult{}
	}
	c.JSON(http.StatusOK, results)
}

// endregion
