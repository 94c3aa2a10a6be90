package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fitfunnel/api/models"
)

type identifyCall struct {
	UserID string
	Traits models.Properties
}

// recordingSink remembers every call it receives.
type recordingSink struct {
	mu         sync.Mutex
	name       string
	events     []models.Event
	identifies []identifyCall
	pages      []string
	err        error
	panicWith  any
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Track(_ context.Context, event models.Event) error {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Identify(_ context.Context, userID string, traits models.Properties) error {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifies = append(s.identifies, identifyCall{UserID: userID, Traits: traits})
	return s.err
}

func (s *recordingSink) Page(_ context.Context, name string) error {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, name)
	return s.err
}

func (s *recordingSink) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 123_000_000, time.UTC)

func newTestAnalytics(t *testing.T, sinks ...Sink) *Analytics {
	t.Helper()
	b := NewBroadcaster(zap.NewNop())
	for _, s := range sinks {
		b.Register(s)
	}
	ids := 0
	sm := NewSessionManager(WithSessionIDFunc(func(time.Time) string {
		ids++
		return "session_" + string(rune('a'+ids-1))
	}))
	return New(sm, b, WithClock(func() time.Time { return fixedNow }))
}

func TestTrackEnrichesEvent(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	a := newTestAnalytics(t, sink)

	ctx := WithPageURL(context.Background(), "https://fitpro.example/plans")
	a.Track(ctx, models.EventPlansViewed, models.Properties{"plansCount": 3})

	events := sink.Events()
	require.Len(t, events, 1)
	want := models.Properties{
		"plansCount": 3,
		"sessionId":  "session_a",
		"userId":     nil,
		"timestamp":  "2026-10-18T09:30:00.123Z",
		"url":        "https://fitpro.example/plans",
	}
	if diff := cmp.Diff(want, events[0].Properties); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.EventPlansViewed, events[0].Name)
	assert.Equal(t, "session_a", events[0].SessionID)
}

func TestTrackWithoutPageContextHasNullURL(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)

	a.Track(context.Background(), "X", nil)

	props := sink.Events()[0].Properties
	v, ok := props[models.PropURL]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestEnrichmentWinsOverCallerProperties(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)

	a.Track(context.Background(), "X", models.Properties{
		"sessionId": "forged",
		"userId":    "mallory",
		"timestamp": "1970-01-01T00:00:00.000Z",
	})

	props := sink.Events()[0].Properties
	assert.Equal(t, "session_a", props["sessionId"])
	assert.Nil(t, props["userId"])
	assert.Equal(t, "2026-10-18T09:30:00.123Z", props["timestamp"])
}

func TestTrackDoesNotMutateCallerProperties(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)

	props := models.Properties{"a": 1}
	a.Track(context.Background(), "X", props)

	assert.Equal(t, models.Properties{"a": 1}, props)
}

func TestResetChangesSession(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)
	ctx := context.Background()

	require.NoError(t, a.Identify(ctx, "user-42", nil))
	before := a.Session()
	assert.Equal(t, "user-42", before.UserID)

	after := a.Reset(ctx)
	assert.NotEqual(t, before.ID, after.ID)
	assert.True(t, after.Anonymous())

	a.Track(ctx, "After Reset", nil)

	events := sink.Events()
	require.Len(t, events, 2)

	resetEvent := events[0]
	assert.Equal(t, models.EventAnalyticsReset, resetEvent.Name)
	assert.Equal(t, after.ID, resetEvent.Properties["newSessionId"])
	assert.Equal(t, after.ID, resetEvent.Properties["sessionId"])

	assert.Equal(t, after.ID, events[1].Properties["sessionId"])
	assert.Nil(t, events[1].Properties["userId"])
}

func TestIdentify(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)
	ctx := context.Background()

	traits := models.Properties{"email": "a@example.com"}
	require.NoError(t, a.Identify(ctx, "user-1", traits))

	require.Len(t, sink.identifies, 1)
	call := sink.identifies[0]
	assert.Equal(t, "user-1", call.UserID)
	assert.Equal(t, "a@example.com", call.Traits["email"])
	assert.Equal(t, "session_a", call.Traits["sessionId"])
	assert.Equal(t, "2026-10-18T09:30:00.123Z", call.Traits["timestamp"])
	assert.NotContains(t, traits, "sessionId")

	a.Track(ctx, "X", nil)
	assert.Equal(t, "user-1", sink.Events()[0].Properties["userId"])

	assert.ErrorIs(t, a.Identify(ctx, "", nil), ErrEmptyUserID)
	assert.Len(t, sink.identifies, 1)
}

func TestInitIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)
	ctx := context.Background()

	assert.False(t, a.Initialized())
	a.Init(ctx, "tok")
	a.Init(ctx, "tok")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAnalyticsInitialized, events[0].Name)
	assert.Equal(t, "tok", events[0].Properties["token"])
	assert.True(t, a.Initialized())
}

func TestPageView(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)

	a.PageView(context.Background(), "Cart", models.Properties{"source": "nav"})

	ev := sink.Events()[0]
	assert.Equal(t, models.EventPageViewed, ev.Name)
	assert.Equal(t, "Cart", ev.Properties["pageName"])
	assert.Equal(t, "nav", ev.Properties["source"])
}

func TestPageForwardsNativeHit(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)

	a.Page(context.Background(), "Cart")

	assert.Equal(t, []string{"Cart"}, sink.pages)
	assert.Empty(t, sink.Events())
}

func TestFanoutDeliversIdenticalEvents(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	a := newTestAnalytics(t, first, second)

	a.Track(context.Background(), models.EventCTAClicked, models.Properties{"location": "hero"})

	require.Len(t, first.Events(), 1)
	require.Len(t, second.Events(), 1)
	assert.Equal(t, first.Events()[0].Name, second.Events()[0].Name)
	if diff := cmp.Diff(first.Events()[0].Properties, second.Events()[0].Properties); diff != "" {
		t.Errorf("sinks saw different properties:\n%s", diff)
	}
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewBroadcaster(zap.New(core))

	failing := &recordingSink{name: "failing", err: errors.New("network down")}
	panicking := &recordingSink{name: "panicking", panicWith: "boom"}
	healthy := &recordingSink{name: "healthy"}
	b.Register(failing)
	b.Register(panicking)
	b.Register(healthy)

	a := New(NewSessionManager(), b)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		a.Track(ctx, "X", nil)
		a.Page(ctx, "Home")
		require.NoError(t, a.Identify(ctx, "u", nil))
	})

	assert.Len(t, healthy.Events(), 1)
	assert.Equal(t, []string{"Home"}, healthy.pages)
	assert.Len(t, healthy.identifies, 1)

	assert.Equal(t, 3, logs.FilterMessage("Analytics sink delivery failed").Len())
	assert.Equal(t, 3, logs.FilterMessage("Analytics sink panicked").Len())
}

func TestSinkMutationIsIsolated(t *testing.T) {
	mutator := &mutatingSink{}
	observerSink := &recordingSink{}
	a := newTestAnalytics(t, mutator, observerSink)

	a.Track(context.Background(), "X", models.Properties{"k": "v"})

	assert.Equal(t, "v", observerSink.Events()[0].Properties["k"])
}

func TestSinkMutationOfNestedValuesIsIsolated(t *testing.T) {
	mutator := &mutatingSink{}
	observerSink := &recordingSink{}
	a := newTestAnalytics(t, mutator, observerSink)
	ctx := context.Background()

	answers := map[int]string{1: "Daily"}
	items := []map[string]any{{"id": "pro", "qty": 1}}
	a.Track(ctx, models.EventCheckoutStarted, models.Properties{
		"answers": answers,
		"items":   items,
		"ids":     []string{"pro"},
	})
	require.NoError(t, a.Identify(ctx, "u1", models.Properties{"prefs": map[string]any{"goal": "strength"}}))

	props := observerSink.Events()[0].Properties
	assert.Equal(t, map[int]string{1: "Daily"}, props["answers"])
	assert.Equal(t, []map[string]any{{"id": "pro", "qty": 1}}, props["items"])
	assert.Equal(t, []string{"pro"}, props["ids"])
	assert.Equal(t, map[string]any{"goal": "strength"}, observerSink.identifies[0].Traits["prefs"])

	assert.Equal(t, map[int]string{1: "Daily"}, answers)
	assert.Equal(t, 1, items[0]["qty"])
}

type mutatingSink struct{}

func (mutatingSink) Track(_ context.Context, ev models.Event) error {
	ev.Properties["k"] = "tampered"
	delete(ev.Properties, "sessionId")
	if answers, ok := ev.Properties["answers"].(map[int]string); ok {
		answers[1] = "tampered"
	}
	if items, ok := ev.Properties["items"].([]map[string]any); ok {
		items[0]["qty"] = 99
	}
	if ids, ok := ev.Properties["ids"].([]string); ok {
		ids[0] = "tampered"
	}
	return nil
}

func (mutatingSink) Identify(_ context.Context, _ string, traits models.Properties) error {
	if prefs, ok := traits["prefs"].(map[string]any); ok {
		prefs["goal"] = "tampered"
	}
	return nil
}

func (mutatingSink) Page(context.Context, string) error                         { return nil }

func TestPerSinkOrdering(t *testing.T) {
	sink := &recordingSink{}
	a := newTestAnalytics(t, sink)
	ctx := context.Background()

	names := []string{"one", "two", "three", "four"}
	for _, n := range names {
		a.Track(ctx, n, nil)
	}

	var got []string
	for _, ev := range sink.Events() {
		got = append(got, ev.Name)
	}
	assert.Equal(t, names, got)
}

func TestBroadcasterRegister(t *testing.T) {
	b := NewBroadcaster(nil)
	b.Register(nil)
	assert.Equal(t, 0, b.Sinks())
	b.Register(&recordingSink{})
	assert.Equal(t, 1, b.Sinks())
	assert.Equal(t, "rec", SinkName(&recordingSink{name: "rec"}))
	assert.Equal(t, "analytics.mutatingSink", SinkName(mutatingSink{}))
}
