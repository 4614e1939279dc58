package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpbridge/internal/logger"
	"github.com/imyashkale/mcpbridge/internal/oauth"
)

const bearerPrefix = "Bearer "

// Authentication validates bearer tokens for protected routes. Requests are
// allowed through when authentication is disabled globally or when the
// declared origin is trusted; otherwise a valid bearer token is required.
func Authentication(svc *oauth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.Enabled() {
			c.Next()
			return
		}

		// Trusted origins bypass token possession entirely
		origin := c.GetHeader("Origin")
		if svc.IsTrustedOrigin(origin) {
			logger.WithFields(map[string]interface{}{
				"path":   c.Request.URL.Path,
				"origin": origin,
			}).Debug("Request allowed via trusted origin")
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			logger.WithField("path", c.Request.URL.Path).Warn("Authentication failed: missing or invalid authorization header")
			unauthorized(c, "Missing or invalid authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
		token, ok := svc.ValidateToken(tokenString)
		if !ok {
			logger.WithField("path", c.Request.URL.Path).Warn("Authentication failed: unknown or expired token")
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("bearer_token", token)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="mcp-bridge"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
