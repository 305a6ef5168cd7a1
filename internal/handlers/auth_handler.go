package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/models"
	"estatecrm/internal/services"
)

type AuthHandler struct {
	authService  services.AuthService
	userService  services.UserService
	resetService services.PasswordResetService
}

func NewAuthHandler(authService services.AuthService, userService services.UserService, resetService services.PasswordResetService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService, resetService: resetService}
}

// @Summary      Вход в систему
// @Description  Accepts a username or an email plus password and returns a token pair
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][login] bad request: bind json failed: err=%v", err)
		bindError(c, err)
		return
	}
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	user, tokens, err := h.authService.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		respondError(c, "auth.login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"tokens":  tokens,
	})
}

// @Summary  Rotate the refresh token
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Success  200  {object}  models.TokenPair
// @Failure  401  {object}  map[string]string
// @Router   /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, "auth.refresh", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// @Summary  Revoke the caller's refresh token
// @Tags     Auth
// @Security BearerAuth
// @Success  204
// @Router   /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), actorFrom(c).UserID); err != nil {
		respondError(c, "auth.logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary  Current user
// @Tags     Auth
// @Security BearerAuth
// @Produce  json
// @Success  200  {object}  models.User
// @Router   /api/auth/user [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		respondError(c, "auth.me", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary  Update own profile
// @Tags     Auth
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    profile  body      models.ProfileInput  true  "Profile fields"
// @Success  200      {object}  models.User
// @Failure  400      {object}  map[string]interface{}
// @Router   /api/auth/user [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var in models.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), actorFrom(c).UserID, in)
	if err != nil {
		respondError(c, "auth.profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary  Change own password
// @Tags     Auth
// @Security BearerAuth
// @Accept   json
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  map[string]interface{}
// @Router   /api/auth/password/change [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), actorFrom(c).UserID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, "auth.password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully."})
}

// @Summary      Request a password reset email
// @Description  Always answers with the same message so account existence is not revealed
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/auth/password/reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.resetService.RequestReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, "password-reset.request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": services.PasswordResetMessage})
}

// @Summary  Set a new password with a reset token
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  map[string]interface{}
// @Router   /api/auth/password/reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.resetService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, "password-reset.confirm", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully."})
}
