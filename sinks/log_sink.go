package sinks

import (
	"context"

	"go.uber.org/zap"

	"fitfunnel/api/models"
)

// LogSink writes every call as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Track(_ context.Context, event models.Event) error {
	s.logger.Info("TRACK",
		zap.String("event", event.Name),
		zap.String("session_id", event.SessionID),
		zap.Any("properties", map[string]any(event.Properties)),
	)
	return nil
}

func (s *LogSink) Identify(_ context.Context, userID string, traits models.Properties) error {
	s.logger.Info("IDENTIFY",
		zap.String("user_id", userID),
		zap.Any("traits", map[string]any(traits)),
	)
	return nil
}

func (s *LogSink) Page(_ context.Context, name string) error {
	s.logger.Info("PAGE", zap.String("page", name))
	return nil
}
