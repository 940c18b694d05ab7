package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/response"
)

// Context keys set by ProtectRoute.
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// Authenticator resolves session tokens to users.
type Authenticator interface {
	Authenticate(token string) (string, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// ProtectRoute validates the session cookie and loads its user
func ProtectRoute(authn Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			response.Error(c, apperrors.Unauthorized("Unauthorized - No token provided"))
			return
		}

		userID, err := authn.Authenticate(token)
		if err != nil {
			response.Error(c, apperrors.Unauthorized("Unauthorized - Invalid token"))
			return
		}

		user, err := authn.Me(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				response.Error(c, apperrors.Unauthorized("Unauthorized - User not found"))
				return
			}
			response.Error(c, err)
			return
		}

		// Store user in context for use in handlers
		c.Set(UserIDKey, userID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by ProtectRoute.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
