package analytics

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fitfunnel/api/models"
)

// Sink is an analytics backend. Implementations may fail; the Broadcaster
// contains the failure to that sink.
type Sink interface {
	Track(ctx context.Context, event models.Event) error
	Identify(ctx context.Context, userID string, traits models.Properties) error
	Page(ctx context.Context, name string) error
}

// Named sinks report a label for logs.
type Named interface {
	Name() string
}

// Broadcaster fans each call out to every registered sink, one at a time,
// in registration order.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *zap.Logger
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{logger: logger}
}

func (b *Broadcaster) Register(sink Sink) {
	if sink == nil {
		return
	}
	b.mu.Lock()
	b.sinks = append(b.sinks, sink)
	b.mu.Unlock()
	b.logger.Info("Analytics sink registered", zap.String("sink", SinkName(sink)))
}

// Sinks returns the number of registered sinks.
func (b *Broadcaster) Sinks() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

// DispatchTrack delivers event to every sink. Each sink gets its own deep
// copy of the properties, nested maps and slices included.
func (b *Broadcaster) DispatchTrack(ctx context.Context, event models.Event) {
	for _, sink := range b.snapshot() {
		ev := event.WithProperties()
		b.deliver(sink, "track", event.Name, func() error {
			return sink.Track(ctx, ev)
		})
	}
}

func (b *Broadcaster) DispatchIdentify(ctx context.Context, userID string, traits models.Properties) {
	for _, sink := range b.snapshot() {
		t := traits.DeepClone()
		b.deliver(sink, "identify", userID, func() error {
			return sink.Identify(ctx, userID, t)
		})
	}
}

func (b *Broadcaster) DispatchPage(ctx context.Context, name string) {
	for _, sink := range b.snapshot() {
		b.deliver(sink, "page", name, func() error {
			return sink.Page(ctx, name)
		})
	}
}

func (b *Broadcaster) snapshot() []Sink {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Sink(nil), b.sinks...)
}

// deliver runs one sink call, turning errors and panics into log lines.
func (b *Broadcaster) deliver(sink Sink, op, subject string, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Analytics sink panicked",
				zap.String("sink", SinkName(sink)),
				zap.String("op", op),
				zap.String("subject", subject),
				zap.Any("panic", r),
			)
		}
	}()
	if err := call(); err != nil {
		b.logger.Warn("Analytics sink delivery failed",
			zap.String("sink", SinkName(sink)),
			zap.String("op", op),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// SinkName labels sink for logs and metrics.
func SinkName(sink Sink) string {
	if n, ok := sink.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", sink)
}
