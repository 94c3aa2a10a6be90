// api/handlers/router.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fitfunnel/api/catalog"
	"fitfunnel/api/funnel"
	"fitfunnel/api/middleware"
)

type RouterConfig struct {
	Funnels       *funnel.Registry
	Catalog       *catalog.Catalog
	JWTSecret     []byte
	SessionTTL    time.Duration
	CheckoutDelay time.Duration
	FEOrigin      string
	StatsKey      string

	// Optional backends. Nil leaves the route answering 503 or absent.
	Stats          StatsReader
	Profiles       ProfileReader
	Metrics        http.Handler
	TracerProvider trace.TracerProvider

	Logger *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionHandlers := NewSessionHandlers(cfg.Funnels, cfg.JWTSecret, cfg.SessionTTL, logger)
	funnelHandlers := NewFunnelHandlers(cfg.Catalog, cfg.CheckoutDelay, logger)
	trackHandlers := NewTrackHandlers(logger)
	statsHandlers := NewStatsHandlers(cfg.Stats, cfg.Profiles, logger)

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.FEOrigin))
	if cfg.TracerProvider != nil {
		r.Use(middleware.Tracing(cfg.TracerProvider))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "funnels": cfg.Funnels.Len()})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	api.Use(middleware.PageContext())
	{
		api.GET("/catalog", funnelHandlers.GetCatalog)
		api.POST("/session", sessionHandlers.CreateSession)

		protected := api.Group("/")
		protected.Use(middleware.SessionRequired(cfg.JWTSecret, cfg.Funnels, logger))
		{
			protected.GET("/session", sessionHandlers.GetSession)
			protected.DELETE("/session", sessionHandlers.EndSession)
			protected.POST("/session/reset", sessionHandlers.ResetSession)
			protected.POST("/identify", sessionHandlers.Identify)

			protected.POST("/track", trackHandlers.TrackEvents)
			protected.POST("/page", trackHandlers.TrackPage)

			protected.POST("/views/landing", funnelHandlers.ViewLanding)
			protected.POST("/views/plans", funnelHandlers.ViewPlans)
			protected.POST("/views/cart", funnelHandlers.ViewCart)

			protected.GET("/cart", funnelHandlers.GetCart)
			protected.DELETE("/cart", funnelHandlers.ClearCart)
			protected.POST("/cart/items", funnelHandlers.AddItem)
			protected.PATCH("/cart/items/:id", funnelHandlers.UpdateQuantity)
			protected.DELETE("/cart/items/:id", funnelHandlers.RemoveItem)
			protected.POST("/cart/addons/:id", funnelHandlers.AddAddOn)

			protected.PUT("/plan", funnelHandlers.SelectPlan)
			protected.POST("/plan/continue", funnelHandlers.ContinueWithPlan)

			protected.POST("/quiz/start", funnelHandlers.StartQuiz)
			protected.POST("/quiz/abandon", funnelHandlers.AbandonQuiz)
			protected.POST("/quiz/:step/view", funnelHandlers.ViewQuizStep)
			protected.PUT("/quiz/:step", funnelHandlers.AnswerQuizStep)
			protected.POST("/quiz/:step/complete", funnelHandlers.CompleteQuizStep)

			protected.POST("/checkout", funnelHandlers.Checkout)
		}

		stats := api.Group("/stats")
		stats.Use(middleware.APIKeyRequired(cfg.StatsKey))
		{
			stats.GET("/event-counts", statsHandlers.GetEventCountsOverTime)
			stats.GET("/unique-sessions", statsHandlers.GetUniqueSessionsOverTime)
			stats.GET("/top-pages", statsHandlers.GetTopPages)
			stats.GET("/average-order-value", statsHandlers.GetAverageOrderValue)
			stats.GET("/average-property", statsHandlers.GetAveragePropertyValue)
			stats.GET("/profiles/:userId", statsHandlers.GetProfile)
		}
	}
	return r
}
