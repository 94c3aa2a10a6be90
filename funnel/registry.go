package funnel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitfunnel/api/analytics"
)

type RegistryConfig struct {
	// Token is passed to Init on every new funnel.
	Token string
	// IdleTTL is how long a funnel may go untouched before Sweep evicts it.
	// Zero disables eviction.
	IdleTTL time.Duration
}

type entry struct {
	funnel   *Funnel
	lastSeen time.Time
}

// Registry keeps the live funnels of an HTTP server, all sharing one
// Broadcaster.
type Registry struct {
	mu          sync.Mutex
	funnels     map[string]*entry
	broadcaster *analytics.Broadcaster
	cfg         RegistryConfig
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

func NewRegistry(broadcaster *analytics.Broadcaster, cfg RegistryConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		funnels:     make(map[string]*entry),
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Create starts and registers a new initialized funnel.
func (r *Registry) Create(ctx context.Context) *Funnel {
	f := New(r.newID(), r.broadcaster,
		analytics.WithLogger(r.logger),
		analytics.WithClock(r.now),
	)
	f.Analytics.Init(ctx, r.cfg.Token)

	r.mu.Lock()
	r.funnels[f.ID] = &entry{funnel: f, lastSeen: r.now()}
	n := len(r.funnels)
	r.mu.Unlock()

	r.logger.Debug("Funnel created",
		zap.String("funnel_id", f.ID),
		zap.String("session_id", f.Analytics.Session().ID),
		zap.Int("live_funnels", n),
	)
	return f
}

// Get returns the funnel with id and marks it as seen.
func (r *Registry) Get(id string) (*Funnel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.funnels[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.funnel, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funnels, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.funnels)
}

// Sweep evicts funnels idle for longer than IdleTTL as of now and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.funnels {
		if now.Sub(e.lastSeen) > r.cfg.IdleTTL {
			delete(r.funnels, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Info("Evicted idle funnels", zap.Int("evicted", evicted), zap.Int("remaining", len(r.funnels)))
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}
