package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitfunnel/api/analytics"
	"fitfunnel/api/funnel"
	"fitfunnel/api/utils"
)

// SessionCookie carries the signed session token issued by POST /api/session.
const SessionCookie = "funnel_session"

// Context keys set by SessionRequired.
const (
	FunnelIDKey  = "funnel_id"
	SessionIDKey = "session_id"
)

// FunnelLookup is satisfied by *funnel.Registry.
type FunnelLookup interface {
	Get(id string) (*funnel.Funnel, bool)
}

// SessionRequired resolves the caller's funnel from the session token in
// the cookie or an Authorization bearer header and attaches it to the
// request context.
func SessionRequired(secret []byte, funnels FunnelLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if tokenString == "" {
				logger.Debug("SessionRequired: no session token in cookie or header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No session token provided"})
				return
			}
		}

		claims, err := utils.ValidateSessionToken(secret, tokenString)
		if err != nil {
			logger.Debug("SessionRequired: invalid session token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired session token"})
			return
		}

		f, ok := funnels.Get(claims.FunnelID)
		if !ok {
			logger.Debug("SessionRequired: funnel not found", zap.String("funnel_id", claims.FunnelID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Session has expired, start a new one"})
			return
		}

		c.Set(FunnelIDKey, f.ID)
		c.Set(SessionIDKey, f.Analytics.Session().ID)
		c.Request = c.Request.WithContext(funnel.NewContext(c.Request.Context(), f))
		c.Next()
	}
}

// APIKeyRequired guards the stats endpoints with a shared X-API-KEY. An
// empty key rejects every request.
func APIKeyRequired(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-KEY")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
			return
		}
		c.Next()
	}
}

// PageContext records the page the client is on, taken from X-Page-URL or
// else Referer, so tracked events carry it as their url.
func PageContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.GetHeader("X-Page-URL")
		if url == "" {
			url = c.GetHeader("Referer")
		}
		if url != "" {
			c.Request = c.Request.WithContext(analytics.WithPageURL(c.Request.Context(), url))
		}
		c.Next()
	}
}
