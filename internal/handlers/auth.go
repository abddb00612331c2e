package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

const refreshCookieName = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Auth *services.AuthService
	Cfg  *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = services.NormalizeEmail(r.Email)
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	utils.Success(c, "Login successful", res)
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates the refresh token, read from the HTTP-only cookie or
// the request body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	utils.Success(c, "Access token refreshed successfully", pair)
}

// Logout revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), token); err != nil {
		respondServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie, true
	}
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(
		refreshCookieName,
		value,
		maxAge,
		"/",
		"",
		h.Cfg.Environment != "development", // Secure (true outside development)
		true,
	)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.Auth.Profile(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Auth.UpdateProfile(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

// ResetAccountData wipes the calling patient's medications, reports and
// achievement progress.
func (h *AuthHandler) ResetAccountData(c *gin.Context) {
	if err := h.Auth.ResetAccountData(c.Request.Context(), callerFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Account data reset successfully", nil)
}
