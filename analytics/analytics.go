// Package analytics builds enriched events and fans them out to sinks.
//
// An Analytics value is the single call surface for the rest of the
// application. It owns no item data: session identity lives in its
// SessionManager and delivery in a Broadcaster that may be shared between
// several Analytics values.
package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fitfunnel/api/models"
)

type Analytics struct {
	session     *SessionManager
	broadcaster *Broadcaster
	logger      *zap.Logger
	now         func() time.Time

	// mu serializes event construction and dispatch so every sink sees
	// events in the order they were produced.
	mu          sync.Mutex
	initialized bool
}

type Option func(*Analytics)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the timestamp source used for enrichment.
func WithClock(now func() time.Time) Option {
	return func(a *Analytics) { a.now = now }
}

// New returns a facade over session and broadcaster. A nil session gets a
// fresh SessionManager.
func New(session *SessionManager, broadcaster *Broadcaster, opts ...Option) *Analytics {
	if session == nil {
		session = NewSessionManager()
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster(nil)
	}
	a := &Analytics{
		session:     session,
		broadcaster: broadcaster,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init records initialization once. Later calls do nothing.
func (a *Analytics) Init(ctx context.Context, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return
	}
	a.initialized = true

	a.logger.Info("Analytics initialized",
		zap.String("session_id", a.session.Current().ID),
		zap.Bool("token_set", token != ""),
	)
	a.dispatchLocked(ctx, models.EventAnalyticsInitialized, models.Properties{"token": token})
}

func (a *Analytics) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Session returns the current session snapshot.
func (a *Analytics) Session() models.Session {
	return a.session.Current()
}

// Track enriches properties with session context and delivers one event to
// every sink. Enrichment keys always win over caller keys.
func (a *Analytics) Track(ctx context.Context, name string, properties models.Properties) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dispatchLocked(ctx, name, properties)
}

// PageView tracks a Page Viewed event named after pageName.
func (a *Analytics) PageView(ctx context.Context, pageName string, properties models.Properties) {
	props := models.Properties{"pageName": pageName}
	for k, v := range properties {
		props[k] = v
	}
	a.Track(ctx, models.EventPageViewed, props)
}

// Page forwards a native page hit to every sink.
func (a *Analytics) Page(ctx context.Context, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcaster.DispatchPage(ctx, name)
}

// Identify attaches userID to the session and forwards traits plus session
// context to every sink.
func (a *Analytics) Identify(ctx context.Context, userID string, traits models.Properties) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.session.Identify(userID); err != nil {
		return err
	}
	session := a.session.Current()

	payload := traits.Clone()
	payload[models.PropSessionID] = session.ID
	payload[models.PropTimestamp] = models.FormatTimestamp(a.now())

	a.logger.Debug("Analytics user identified",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
	)
	a.broadcaster.DispatchIdentify(ctx, userID, payload)
	return nil
}

// Reset starts a new anonymous session and announces it.
func (a *Analytics) Reset(ctx context.Context) models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	session := a.session.Reset()
	a.logger.Info("Analytics session reset", zap.String("session_id", session.ID))
	a.dispatchLocked(ctx, models.EventAnalyticsReset, models.Properties{"newSessionId": session.ID})
	return session
}

func (a *Analytics) dispatchLocked(ctx context.Context, name string, properties models.Properties) {
	event := a.buildEvent(ctx, name, properties)
	a.logger.Debug("Analytics track", zap.String("event", name), zap.String("session_id", event.SessionID))
	a.broadcaster.DispatchTrack(ctx, event)
}

func (a *Analytics) buildEvent(ctx context.Context, name string, properties models.Properties) models.Event {
	session := a.session.Current()
	ts := a.now().UTC()
	url, hasURL := PageURL(ctx)

	props := properties.Clone()
	props[models.PropSessionID] = session.ID
	if session.Anonymous() {
		props[models.PropUserID] = nil
	} else {
		props[models.PropUserID] = session.UserID
	}
	props[models.PropTimestamp] = models.FormatTimestamp(ts)
	if hasURL {
		props[models.PropURL] = url
	} else {
		props[models.PropURL] = nil
	}

	return models.Event{
		Name:       name,
		Properties: props,
		SessionID:  session.ID,
		UserID:     session.UserID,
		Timestamp:  ts,
		URL:        url,
	}
}
