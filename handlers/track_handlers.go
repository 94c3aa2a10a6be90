// api/handlers/track_handlers.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitfunnel/api/funnel"
	"fitfunnel/api/models"
)

// maxTrackBatch bounds how many events one POST /api/track may carry.
const maxTrackBatch = 100

type TrackHandlers struct {
	logger *zap.Logger
}

func NewTrackHandlers(logger *zap.Logger) *TrackHandlers {
	return &TrackHandlers{logger: logger}
}

// TrackEvents accepts an array of {event, properties} from the client and
// tracks each through the caller's funnel, in order.
func (h *TrackHandlers) TrackEvents(c *gin.Context) {
	var incoming []models.TrackRequest
	if err := c.ShouldBindJSON(&incoming); err != nil {
		h.logger.Debug("Error binding incoming track JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(incoming) > maxTrackBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many events in one request"})
		return
	}
	for _, ev := range incoming {
		if ev.Event == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Every event needs a name"})
			return
		}
	}

	f := funnel.MustFromContext(c.Request.Context())
	for _, ev := range incoming {
		f.Analytics.Track(c.Request.Context(), ev.Event, ev.Properties)
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(incoming)})
}

// TrackPage records a Page Viewed event, and a native page hit when asked.
func (h *TrackHandlers) TrackPage(c *gin.Context) {
	var req models.PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	f := funnel.MustFromContext(c.Request.Context())
	f.Analytics.PageView(c.Request.Context(), req.Name, req.Properties)
	if req.Native {
		f.Analytics.Page(c.Request.Context(), req.Name)
	}
	c.Status(http.StatusAccepted)
}
