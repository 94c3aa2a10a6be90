package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fitfunnel/api/models"
)

// CollectorSink forwards calls to a remote ingestion endpoint that accepts
// a JSON array of event records, authenticated with X-API-KEY.
type CollectorSink struct {
	url    string
	apiKey string
	client *http.Client
	now    func() time.Time
}

func NewCollectorSink(url, apiKey string, client *http.Client) *CollectorSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CollectorSink{url: url, apiKey: apiKey, client: client, now: time.Now}
}

func (s *CollectorSink) Name() string { return "collector" }

func (s *CollectorSink) Track(ctx context.Context, event models.Event) error {
	rec, err := trackRecord(event)
	if err != nil {
		return err
	}
	return s.post(ctx, rec)
}

func (s *CollectorSink) Identify(ctx context.Context, userID string, traits models.Properties) error {
	rec, err := identifyRecord(userID, traits, s.now())
	if err != nil {
		return err
	}
	return s.post(ctx, rec)
}

func (s *CollectorSink) Page(ctx context.Context, name string) error {
	rec, err := pageRecord(name, s.now())
	if err != nil {
		return err
	}
	return s.post(ctx, rec)
}

func (s *CollectorSink) post(ctx context.Context, records ...models.EventRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode collector batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to collector: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector responded %s", resp.Status)
	}
	return nil
}
