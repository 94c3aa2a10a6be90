package sinks

import (
	"context"
	"fmt"
	"time"

	"fitfunnel/api/models"
)

// EventWriter is satisfied by store.AnalyticsStore.
type EventWriter interface {
	InsertAnalyticsEvents(ctx context.Context, events []models.EventRecord) error
}

// ClickHouseSink stores each call as a row in analytics_events.
type ClickHouseSink struct {
	writer  EventWriter
	timeout time.Duration
	now     func() time.Time
}

func NewClickHouseSink(writer EventWriter) *ClickHouseSink {
	return &ClickHouseSink{writer: writer, timeout: 15 * time.Second, now: time.Now}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Track(ctx context.Context, event models.Event) error {
	rec, err := trackRecord(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %q: %w", event.Name, err)
	}
	return s.insert(ctx, rec)
}

func (s *ClickHouseSink) Identify(ctx context.Context, userID string, traits models.Properties) error {
	rec, err := identifyRecord(userID, traits, s.now())
	if err != nil {
		return fmt.Errorf("failed to encode identify for %q: %w", userID, err)
	}
	return s.insert(ctx, rec)
}

func (s *ClickHouseSink) Page(ctx context.Context, name string) error {
	rec, err := pageRecord(name, s.now())
	if err != nil {
		return fmt.Errorf("failed to encode page %q: %w", name, err)
	}
	return s.insert(ctx, rec)
}

func (s *ClickHouseSink) insert(ctx context.Context, rec models.EventRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.writer.InsertAnalyticsEvents(ctx, []models.EventRecord{rec})
}
