package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAdminToken carries the static operator token.
const HeaderAdminToken = "X-Admin-Token"

// AdminAuth guards operator routes with a static token compared in constant
// time. An empty configured token disables the routes entirely.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "forbidden",
				"message":    "admin API disabled",
			})
			return
		}
		got := []byte(c.GetHeader(HeaderAdminToken))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid admin token",
			})
			return
		}
		c.Next()
	}
}
