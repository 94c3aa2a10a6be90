package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fitfunnel/api/analytics"
	"fitfunnel/api/catalog"
	"fitfunnel/api/config"
	"fitfunnel/api/funnel"
	"fitfunnel/api/models"
)

type captureSink struct {
	mu     sync.Mutex
	events []models.Event
	users  []string
	pages  []string
}

func (s *captureSink) Track(_ context.Context, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Identify(_ context.Context, userID string, _ models.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return nil
}

func (s *captureSink) Page(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, name)
	return nil
}

func (s *captureSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Name)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud", false)
	assert.ErrorContains(t, err, "invalid LOG_LEVEL")
}

func TestSimulationWalksWholeFunnel(t *testing.T) {
	sink := &captureSink{}
	b := analytics.NewBroadcaster(zap.NewNop())
	b.Register(sink)
	f := funnel.New("sim", b)

	sim := simulation{Plan: "pro", AddOns: []string{"nutrition"}, UserID: "user-7"}
	order, err := sim.run(context.Background(), f, catalog.Default())
	require.NoError(t, err)

	step := []string{
		models.EventPageViewed,
		models.EventQuizStepViewed,
		models.EventQuizAnswerSelected,
		models.EventQuizStepCompleted,
	}
	want := []string{
		models.EventPageViewed,
		models.EventLandingPageViewed,
		models.EventCTAClicked,
		models.EventQuizStarted,
	}
	want = append(want, step...)
	want = append(want, step...)
	want = append(want, step...)
	want = append(want,
		models.EventQuizCompleted,
		models.EventPageViewed,
		models.EventPlansViewed,
		models.EventPlanSelected,
		models.EventItemAddedToCart,
		models.EventItemAddedToCart,
		models.EventCheckoutStarted,
		models.EventPageViewed,
		models.EventCartViewed,
		models.EventCheckoutStarted,
		models.EventCheckoutCompleted,
	)
	assert.Equal(t, want, sink.names())
	assert.Equal(t, []string{"Cart"}, sink.pages)
	assert.Equal(t, []string{"user-7"}, sink.users)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "nutrition", order.Items[0].ID)
	assert.Equal(t, "pro", order.Items[1].ID)
	assert.InDelta(t, 24.98, order.Total, 1e-9)
	assert.Empty(t, f.Cart.Items())

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, "user-7", last.Properties["userId"])
	assert.Equal(t, "/cart", last.Properties["url"])
}

func TestSimulationUsesGivenAnswers(t *testing.T) {
	sink := &captureSink{}
	b := analytics.NewBroadcaster(zap.NewNop())
	b.Register(sink)
	f := funnel.New("sim", b)

	sim := simulation{Plan: "basic", Answers: []string{"Build muscle", "Daily"}}
	_, err := sim.run(context.Background(), f, catalog.Default())
	require.NoError(t, err)

	assert.Equal(t, map[int]string{1: "Build muscle", 2: "Daily", 3: "Beginner"}, f.Cart.QuizAnswers())
}

func TestSimulationRejectsUnknownChoices(t *testing.T) {
	cat := catalog.Default()
	b := analytics.NewBroadcaster(zap.NewNop())

	_, err := simulation{Plan: "platinum"}.run(context.Background(), funnel.New("a", b), cat)
	assert.ErrorIs(t, err, funnel.ErrUnknownPlan)

	_, err = simulation{Plan: "pro", AddOns: []string{"yacht"}}.run(context.Background(), funnel.New("b", b), cat)
	assert.ErrorIs(t, err, funnel.ErrUnknownAddOn)

	_, err = simulation{Plan: "pro", Answers: []string{"Fly"}}.run(context.Background(), funnel.New("c", b), cat)
	assert.ErrorIs(t, err, funnel.ErrUnknownAnswer)
}

func TestBackendsCloseOrder(t *testing.T) {
	var order []string
	bk := &backends{logger: zap.NewNop()}
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	bk.closers = append(bk.closers, record("postgres", nil), record("nats", errors.New("drain failed")))
	bk.drains = append(bk.drains, record("async", nil))

	err := bk.Close(context.Background())
	assert.ErrorContains(t, err, "drain failed")
	assert.Equal(t, []string{"async", "nats", "postgres"}, order)

	order = nil
	require.NoError(t, bk.Close(context.Background()))
	assert.Empty(t, order)
}

func TestSetupBackendsWithJournal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	cfg := &config.Config{JournalPath: path, SinkQueueSize: 8}

	b := analytics.NewBroadcaster(zap.NewNop())
	bk, err := setupBackends(ctx, cfg, b, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, b.Sinks())
	assert.Nil(t, bk.stats)
	assert.Nil(t, bk.profiles)
	assert.Nil(t, bk.tracer)

	f := funnel.New("f1", b)
	f.Analytics.Init(ctx, "tok")
	f.Cart.AddItem(ctx, "gear", "Starter Gear Kit", 79.99)

	rec := httptest.NewRecorder()
	bk.metricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `funnel_events_total{event="Item Added to Cart"} 1`)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, bk.Close(closeCtx))

	journal, err := openJournal(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer journal.Close()

	entries, err := journal.store.List(ctx, f.Analytics.Session().ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EventAnalyticsInitialized, entries[0].Record.EventName)
	assert.Equal(t, models.EventItemAddedToCart, entries[1].Record.EventName)
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(0))
	assert.Equal(t, 5*time.Minute, sweepInterval(20*time.Minute))
	assert.Equal(t, time.Second, sweepInterval(2*time.Second))
}
