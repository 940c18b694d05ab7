package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/middleware"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/response"
	"github.com/yourusername/lingo-service/internal/services"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name string
	// Secure marks the cookie HTTPS-only; set in production.
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService *services.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService *services.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "jwt"
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = authService.SessionTTL()
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

// Signup creates an account and starts a session
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, session.Token)
	c.JSON(http.StatusCreated, models.AuthResponse{Success: true, User: session.User})
}

// Login starts a session
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, session.Token)
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: session.User})
}

// Logout clears the session cookie. Tokens are stateless, so nothing else is revoked.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Onboard completes the profile of the signed-in user
func (h *AuthHandler) Onboard(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.Error(c, apperrors.Unauthorized("Unauthorized - No token provided"))
		return
	}

	var req models.OnboardRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.authService.Onboard(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: user})
}

// Me returns the signed-in user
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.Unauthorized("Unauthorized - No token provided"))
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: user})
}

// CookieName is the name of the session cookie.
func (h *AuthHandler) CookieName() string {
	return h.cookie.Name
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.MaxAge/time.Second), "/", "", h.cookie.Secure, true)
}

// bindJSON decodes the request body into v. An empty body leaves v zeroed so
// the field checks report what is missing.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Validation("Invalid request body")
	}
	return nil
}
