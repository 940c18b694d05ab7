// Package response writes API error bodies for gin handlers.
package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/apperrors"
)

// Error records err on the context for the request logger and aborts with
// its categorized body. Uncategorized errors become a generic internal error.
func Error(c *gin.Context, err error) {
	apiErr := apperrors.As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}
