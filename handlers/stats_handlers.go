// api/handlers/stats_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitfunnel/api/models"
	"fitfunnel/api/store"
	"fitfunnel/api/utils"
)

// StatsReader is satisfied by *store.AnalyticsStore.
type StatsReader interface {
	GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventNameFilter string) ([]store.EventTypeCountByTime, error)
	GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]store.EventTypeCountByTime, error)
	GetAveragePropertyValue(ctx context.Context, eventName, property string, start, end time.Time) (float64, error)
	GetTopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPageResult, error)
}

// ProfileReader is satisfied by *store.ProfileStore.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

type StatsHandlers struct {
	Stats    StatsReader
	Profiles ProfileReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsHandlers accepts nil readers; the matching routes then answer
// 503.
func NewStatsHandlers(stats StatsReader, profiles ProfileReader, logger *zap.Logger) *StatsHandlers {
	return &StatsHandlers{Stats: stats, Profiles: profiles, logger: logger, now: time.Now}
}

func (h *StatsHandlers) GetEventCountsOverTime(c *gin.Context) {
	if !h.statsAvailable(c) {
		return
	}
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interval"})
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetEventCountsOverTime(ctx, interval, start, end, c.Query("eventName"))
	if err != nil {
		h.logger.Error("Error getting event counts over time", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event statistics"})
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func (h *StatsHandlers) GetUniqueSessionsOverTime(c *gin.Context) {
	if !h.statsAvailable(c) {
		return
	}
	interval := c.Query("interval")
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetUniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		h.logger.Error("Error getting unique sessions over time", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unique session statistics"})
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

// GetAverageOrderValue averages orderTotal over Checkout Completed events.
func (h *StatsHandlers) GetAverageOrderValue(c *gin.Context) {
	h.averageProperty(c, models.EventCheckoutCompleted, "orderTotal")
}

func (h *StatsHandlers) GetAveragePropertyValue(c *gin.Context) {
	eventName := c.Query("eventName")
	property := c.Query("property")
	if eventName == "" || property == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventName and property query parameters are required"})
		return
	}
	h.averageProperty(c, eventName, property)
}

func (h *StatsHandlers) averageProperty(c *gin.Context, eventName, property string) {
	if !h.statsAvailable(c) {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	avg, err := h.Stats.GetAveragePropertyValue(ctx, eventName, property, start, end)
	if err != nil {
		h.logger.Error("Error getting average property value",
			zap.String("event", eventName), zap.String("property", property), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve average statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eventName":    eventName,
		"property":     property,
		"startDate":    start.Format(time.RFC3339),
		"endDate":      end.Format(time.RFC3339),
		"averageValue": avg,
	})
}

func (h *StatsHandlers) GetTopPages(c *gin.Context) {
	if !h.statsAvailable(c) {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetTopPages(ctx, start, end, limit)
	if err != nil {
		h.logger.Error("Error getting top pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top page statistics"})
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func (h *StatsHandlers) GetProfile(c *gin.Context) {
	if h.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Profile storage is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	profile, err := h.Profiles.GetProfile(ctx, c.Param("userId"))
	if errors.Is(err, store.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		h.logger.Error("Error getting profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *StatsHandlers) statsAvailable(c *gin.Context) bool {
	if h.Stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event storage is not configured"})
		return false
	}
	return true
}

func (h *StatsHandlers) timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
