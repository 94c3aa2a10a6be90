package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fitfunnel/api/analytics"
	"fitfunnel/api/catalog"
	"fitfunnel/api/funnel"
	"fitfunnel/api/handlers"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the funnel HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(cfg.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET_KEY is not set")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	broadcaster := analytics.NewBroadcaster(logger)
	bk, err := setupBackends(ctx, cfg, broadcaster, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = bk.Close(closeCtx)
	}()

	registry := funnel.NewRegistry(broadcaster, funnel.RegistryConfig{
		Token:   cfg.AnalyticsToken,
		IdleTTL: cfg.FunnelIdleTTL,
	}, logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		Funnels:        registry,
		Catalog:        cat,
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     cfg.SessionTTL,
		CheckoutDelay:  cfg.CheckoutDelay,
		FEOrigin:       cfg.FEOrigin,
		StatsKey:       cfg.StatsKey,
		Stats:          bk.stats,
		Profiles:       bk.profiles,
		Metrics:        bk.metricsHandler(),
		TracerProvider: bk.tracer,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Go API server starting", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("go API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registry.RunSweeper(gctx, sweepInterval(cfg.FunnelIdleTTL))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server exiting.")
	return nil
}

func sweepInterval(idleTTL time.Duration) time.Duration {
	if idleTTL <= 0 {
		return time.Minute
	}
	return max(idleTTL/4, time.Second)
}

func promHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
