// README: Bearer-token auth middleware; stores the caller's uid and role on the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"newber/internal/modules/identity"
)

const (
	ctxUID  = "caller_uid"
	ctxRole = "caller_role"
)

// Auth rejects requests without a valid "Authorization: Bearer <id token>" header. WebSocket
// handshakes may pass the token as ?access_token= instead.
func Auth(verifier identity.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok && websocket.IsWebSocketUpgrade(c.Request) {
			// browsers cannot set headers on a websocket handshake
			raw, ok = c.Query("access_token"), true
		}
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		role, _ := token.Claims[identity.RoleClaim].(string)
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// CallerRole is "" when the token carries no role claim yet.
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}
