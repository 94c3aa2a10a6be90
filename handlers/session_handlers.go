// api/handlers/session_handlers.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitfunnel/api/funnel"
	"fitfunnel/api/middleware"
	"fitfunnel/api/models"
	"fitfunnel/api/utils"
)

type SessionHandlers struct {
	Funnels    *funnel.Registry
	Secret     []byte
	SessionTTL time.Duration
	logger     *zap.Logger
}

func NewSessionHandlers(funnels *funnel.Registry, secret []byte, ttl time.Duration, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{Funnels: funnels, Secret: secret, SessionTTL: ttl, logger: logger}
}

// CreateSession starts a new funnel and hands the client a signed token
// bound to it, both as a cookie and in the body.
func (h *SessionHandlers) CreateSession(c *gin.Context) {
	f := h.Funnels.Create(c.Request.Context())

	token, err := utils.GenerateSessionToken(h.Secret, f.ID, h.SessionTTL, time.Now())
	if err != nil {
		h.Funnels.Remove(f.ID)
		h.logger.Error("Failed to sign session token", zap.String("funnel_id", f.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.SetCookie(middleware.SessionCookie, token, int(h.SessionTTL/time.Second), "/", "", false, true)

	session := f.Analytics.Session()
	h.logger.Info("Funnel session started", zap.String("funnel_id", f.ID), zap.String("session_id", session.ID))
	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"funnelId":  f.ID,
		"sessionId": session.ID,
	})
}

func (h *SessionHandlers) GetSession(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, sessionResponse(f))
}

// EndSession drops the funnel and clears the cookie.
func (h *SessionHandlers) EndSession(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	h.Funnels.Remove(f.ID)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)

	h.logger.Info("Funnel session ended", zap.String("funnel_id", f.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

// ResetSession swaps in a new anonymous analytics session. The cart is
// left alone.
func (h *SessionHandlers) ResetSession(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	f.Analytics.Reset(c.Request.Context())
	c.JSON(http.StatusOK, sessionResponse(f))
}

func (h *SessionHandlers) Identify(c *gin.Context) {
	var req models.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	f := funnel.MustFromContext(c.Request.Context())
	if err := f.Analytics.Identify(c.Request.Context(), req.UserID, req.Traits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(f))
}

func sessionResponse(f *funnel.Funnel) gin.H {
	session := f.Analytics.Session()
	var userID any
	if !session.Anonymous() {
		userID = session.UserID
	}
	return gin.H{
		"funnelId":    f.ID,
		"sessionId":   session.ID,
		"userId":      userID,
		"initialized": f.Analytics.Initialized(),
	}
}
