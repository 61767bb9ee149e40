package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
	"github.com/kc-reserve/hut-api/pkg/response"
)

// RequireAdmin allows only callers whose token carries the admin claim.
// It must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !claims.IsAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin privileges required"))
			return
		}
		c.Next()
	}
}
