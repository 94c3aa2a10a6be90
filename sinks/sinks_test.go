package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fitfunnel/api/analytics"
	"fitfunnel/api/database"
	"fitfunnel/api/models"
	"fitfunnel/api/store"
)

var (
	_ analytics.Sink = (*LogSink)(nil)
	_ analytics.Sink = (*ClickHouseSink)(nil)
	_ analytics.Sink = (*ProfileSink)(nil)
	_ analytics.Sink = (*JournalSink)(nil)
	_ analytics.Sink = (*NATSSink)(nil)
	_ analytics.Sink = (*PrometheusSink)(nil)
	_ analytics.Sink = (*OTelSink)(nil)
	_ analytics.Sink = (*CollectorSink)(nil)
	_ analytics.Sink = (*Async)(nil)

	_ EventWriter   = (*store.AnalyticsStore)(nil)
	_ ProfileWriter = (*store.ProfileStore)(nil)
	_ JournalWriter = (*store.JournalStore)(nil)
)

func sampleEvent() models.Event {
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return models.Event{
		Name: models.EventItemAddedToCart,
		Properties: models.Properties{
			"itemId":    "gear",
			"price":     79.99,
			"sessionId": "session_1",
			"userId":    nil,
			"timestamp": models.FormatTimestamp(ts),
			"url":       "https://fitpro.example/plans",
		},
		SessionID: "session_1",
		Timestamp: ts,
		URL:       "https://fitpro.example/plans",
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Identify(ctx, "u1", models.Properties{"plan": "pro"}))
	require.NoError(t, s.Page(ctx, "Cart"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "TRACK", entries[0].Message)
	assert.Equal(t, models.EventItemAddedToCart, entries[0].ContextMap()["event"])
	assert.Equal(t, "IDENTIFY", entries[1].Message)
	assert.Equal(t, "PAGE", entries[2].Message)
}

type fakeEventWriter struct {
	records []models.EventRecord
	err     error
}

func (w *fakeEventWriter) InsertAnalyticsEvents(ctx context.Context, events []models.EventRecord) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("insert without deadline")
	}
	w.records = append(w.records, events...)
	return w.err
}

func TestClickHouseSink(t *testing.T) {
	w := &fakeEventWriter{}
	s := NewClickHouseSink(w)
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Identify(ctx, "u1", models.Properties{"sessionId": "session_1"}))
	require.NoError(t, s.Page(ctx, "Cart"))

	require.Len(t, w.records, 3)
	rec := w.records[0]
	assert.NotEmpty(t, rec.EventID)
	assert.Equal(t, models.EventItemAddedToCart, rec.EventName)
	assert.Equal(t, "session_1", rec.SessionID)
	assert.Equal(t, "https://fitpro.example/plans", rec.PageURL)
	assert.JSONEq(t, `{"itemId":"gear","price":79.99,"sessionId":"session_1","userId":null,
		"timestamp":"2026-10-18T09:00:00.000Z","url":"https://fitpro.example/plans"}`, string(rec.Properties))

	assert.Equal(t, identifyRecordName, w.records[1].EventName)
	assert.Equal(t, "u1", w.records[1].UserID)
	assert.Equal(t, "session_1", w.records[1].SessionID)
	assert.Equal(t, pageRecordName, w.records[2].EventName)
	assert.NotEqual(t, w.records[0].EventID, w.records[1].EventID)

	w.err = errors.New("clickhouse down")
	assert.Error(t, s.Track(ctx, sampleEvent()))
}

type fakeProfileWriter struct {
	userID, sessionID string
	traits            models.Properties
}

func (w *fakeProfileWriter) UpsertProfile(_ context.Context, userID, sessionID string, traits models.Properties) error {
	w.userID, w.sessionID, w.traits = userID, sessionID, traits
	return nil
}

func TestProfileSink(t *testing.T) {
	w := &fakeProfileWriter{}
	s := NewProfileSink(w)
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Page(ctx, "Cart"))
	assert.Empty(t, w.userID)

	traits := models.Properties{"plan": "pro", "sessionId": "session_1", "timestamp": "t"}
	require.NoError(t, s.Identify(ctx, "u1", traits))
	assert.Equal(t, "u1", w.userID)
	assert.Equal(t, "session_1", w.sessionID)
	assert.Equal(t, models.Properties{"plan": "pro"}, w.traits)
	assert.Contains(t, traits, "sessionId")
}

func TestJournalSink(t *testing.T) {
	ctx := context.Background()
	client, err := database.NewSQLiteDB(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()
	journal := store.NewJournalStore(client.DB)
	require.NoError(t, journal.EnsureSchema(ctx))

	s := NewJournalSink(journal)
	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Identify(ctx, "u1", models.Properties{"sessionId": "session_1"}))
	require.NoError(t, s.Page(ctx, "Cart"))

	entries, err := journal.List(ctx, "session_1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.JournalTrack, entries[0].Kind)
	assert.Equal(t, store.JournalIdentify, entries[1].Kind)

	all, err := journal.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, store.JournalPage, all[2].Kind)
}

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSSink(pub, "funnel.")
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Identify(ctx, "u1", models.Properties{"plan": "pro"}))
	require.NoError(t, s.Page(ctx, "Cart"))

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "funnel.track.item_added_to_cart", pub.msgs[0].subject)
	assert.Equal(t, "funnel.identify", pub.msgs[1].subject)
	assert.Equal(t, "funnel.page", pub.msgs[2].subject)

	var wire struct {
		Event      string         `json:"event"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &wire))
	assert.Equal(t, models.EventItemAddedToCart, wire.Event)
	assert.Equal(t, "session_1", wire.Properties["sessionId"])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, s.Track(cancelled, sampleEvent()))
	assert.Len(t, pub.msgs, 3)
}

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"Item Added to Cart":     "item_added_to_cart",
		"Item Removed from Cart": "item_removed_from_cart",
		"CTA Clicked":            "cta_clicked",
		"  weird -- name!! ":     "weird_name",
		"***":                    "unnamed",
	}
	for in, want := range cases {
		assert.Equal(t, want, SubjectToken(in), in)
	}
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, models.Event{Name: models.EventCartViewed}))
	require.NoError(t, s.Track(ctx, models.Event{Name: models.EventCartViewed}))
	require.NoError(t, s.Track(ctx, models.Event{Name: "Totally Custom"}))
	require.NoError(t, s.Track(ctx, models.Event{Name: models.EventAnalyticsReset}))
	require.NoError(t, s.Identify(ctx, "u1", nil))
	require.NoError(t, s.Page(ctx, "Cart"))
	for _, name := range []string{"Quiz Step 2", "Quiz Step 02", "Quiz Step 999", "a1b2c3", "x7y8z9"} {
		require.NoError(t, s.Page(ctx, name))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(s.events.WithLabelValues(models.EventCartViewed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.events.WithLabelValues(otherLabel)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.events.WithLabelValues(models.EventAnalyticsReset)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.identifies))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.pages.WithLabelValues("Cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.pages.WithLabelValues("Quiz Step 2")))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.pages.WithLabelValues(otherLabel)))
	assert.Equal(t, 3, testutil.CollectAndCount(s.pages))

	_, err = NewPrometheusSink(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestOTelSink(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := NewOTelSink(tp)
	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")

	ev := sampleEvent()
	ev.UserID = "u1"
	ev.Properties["items"] = []string{"gear"}
	require.NoError(t, s.Track(ctx, ev))
	require.NoError(t, s.Identify(ctx, "u1", nil))
	require.NoError(t, s.Page(ctx, "Cart"))
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 4)

	track := spans[0]
	assert.Equal(t, "analytics.track", track.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), track.Parent().SpanID())

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range track.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, models.EventItemAddedToCart, attrs["event.name"].AsString())
	assert.Equal(t, "u1", attrs["user.id"].AsString())
	assert.Equal(t, "gear", attrs["event.prop.itemId"].AsString())
	assert.Equal(t, 79.99, attrs["event.prop.price"].AsFloat64())
	assert.Equal(t, `["gear"]`, attrs["event.prop.items"].AsString())
	_, hasUser := attrs["event.prop.userId"]
	assert.False(t, hasUser)

	assert.Equal(t, "analytics.identify", spans[1].Name())
	assert.Equal(t, "analytics.page", spans[2].Name())
}

func TestCollectorSink(t *testing.T) {
	var (
		mu      sync.Mutex
		gotKey  string
		batches [][]models.EventRecord
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotKey = r.Header.Get("X-API-KEY")
		body, _ := io.ReadAll(r.Body)
		var batch []models.EventRecord
		if err := json.Unmarshal(body, &batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		batches = append(batches, batch)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewCollectorSink(srv.URL, "secret", srv.Client())
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, sampleEvent()))
	require.NoError(t, s.Page(ctx, "Cart"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "secret", gotKey)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 1)
	assert.Equal(t, models.EventItemAddedToCart, batches[0][0].EventName)
	assert.Equal(t, "https://fitpro.example/plans", batches[0][0].PageURL)
}

func TestCollectorSinkRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewCollectorSink(srv.URL, "", srv.Client())
	err := s.Track(context.Background(), models.Event{Name: "X"})
	assert.ErrorContains(t, err, "500")
}
