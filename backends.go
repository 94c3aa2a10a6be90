package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fitfunnel/api/analytics"
	"fitfunnel/api/config"
	"fitfunnel/api/database"
	"fitfunnel/api/handlers"
	"fitfunnel/api/sinks"
	"fitfunnel/api/store"
	"fitfunnel/api/telemetry"
)

// backends holds the sinks and stores wired from configuration, plus what
// has to be closed on shutdown.
type backends struct {
	logger *zap.Logger

	stats    handlers.StatsReader
	profiles handlers.ProfileReader
	metrics  *prometheus.Registry
	tracer   trace.TracerProvider

	// drains run before closers so queued events reach their backends.
	drains  []func(context.Context) error
	closers []func(context.Context) error
}

// setupBackends registers a sink on b for every configured backend.
// A backend that is configured but unreachable is an error.
func setupBackends(ctx context.Context, cfg *config.Config, b *analytics.Broadcaster, logger *zap.Logger) (*backends, error) {
	bk := &backends{logger: logger, metrics: prometheus.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			bk.Close(context.Background())
		}
	}()

	bk.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(bk.metrics)
	if err != nil {
		return nil, err
	}
	b.Register(promSink)

	if logger.Core().Enabled(zap.DebugLevel) {
		b.Register(sinks.NewLogSink(logger))
	}

	if cfg.OTelEnabled {
		tp := telemetry.NewTracerProvider(logger)
		otel.SetTracerProvider(tp)
		bk.tracer = tp
		bk.closers = append(bk.closers, tp.Shutdown)
		b.Register(sinks.NewOTelSink(tp))
	}

	if cfg.ClickHouse.Enabled() {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return nil, err
		}
		bk.closeWith(chClient.Close)

		analyticsStore := store.NewAnalyticsStore(chClient, logger)
		if err := analyticsStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		bk.stats = analyticsStore
		bk.registerAsync(b, sinks.NewClickHouseSink(analyticsStore), cfg.SinkQueueSize)
	}

	if cfg.DatabaseURL != "" {
		dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		bk.closeWith(dbClient.Close)

		profileStore := store.NewProfileStore(dbClient.DB)
		if err := profileStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		bk.profiles = profileStore
		bk.registerAsync(b, sinks.NewProfileSink(profileStore), cfg.SinkQueueSize)
	}

	if cfg.JournalPath != "" {
		journal, err := openJournal(ctx, cfg.JournalPath, logger)
		if err != nil {
			return nil, err
		}
		bk.closeWith(journal.Close)
		bk.registerAsync(b, sinks.NewJournalSink(journal.store), cfg.SinkQueueSize)
	}

	if cfg.NATS.URL != "" {
		conn, err := database.NewNATSConn(cfg.NATS.URL, logger)
		if err != nil {
			return nil, err
		}
		bk.closers = append(bk.closers, func(context.Context) error { return conn.Drain() })
		bk.registerAsync(b, sinks.NewNATSSink(conn, cfg.NATS.SubjectPrefix), cfg.SinkQueueSize)
	}

	if cfg.Collector.URL != "" {
		bk.registerAsync(b, sinks.NewCollectorSink(cfg.Collector.URL, cfg.Collector.APIKey, nil), cfg.SinkQueueSize)
	}

	logger.Info("Analytics sinks ready", zap.Int("sinks", b.Sinks()))
	ok = true
	return bk, nil
}

func (bk *backends) registerAsync(b *analytics.Broadcaster, sink analytics.Sink, queueSize int) {
	async := sinks.NewAsync(sink, queueSize, bk.logger)
	bk.drains = append(bk.drains, async.Close)
	b.Register(async)
}

func (bk *backends) closeWith(fn func()) {
	bk.closers = append(bk.closers, func(context.Context) error {
		fn()
		return nil
	})
}

func (bk *backends) metricsHandler() http.Handler {
	return promHandler(bk.metrics)
}

// Close drains async sinks, then closes connections in reverse order.
func (bk *backends) Close(ctx context.Context) error {
	var errs []error
	for _, drain := range bk.drains {
		if err := drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(bk.closers) - 1; i >= 0; i-- {
		if err := bk.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	bk.drains, bk.closers = nil, nil
	if err := errors.Join(errs...); err != nil {
		bk.logger.Warn("Error closing backends", zap.Error(err))
		return err
	}
	return nil
}

type journalHandle struct {
	client *database.DBClient
	store  *store.JournalStore
}

func (j *journalHandle) Close() {
	j.client.Close()
}

func openJournal(ctx context.Context, path string, logger *zap.Logger) (*journalHandle, error) {
	client, err := database.NewSQLiteDB(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	journal := store.NewJournalStore(client.DB)
	if err := journal.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return &journalHandle{client: client, store: journal}, nil
}
