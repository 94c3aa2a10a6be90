package sinks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fitfunnel/api/analytics"
	"fitfunnel/api/models"
)

var (
	ErrQueueFull  = errors.New("sink queue full, call dropped")
	ErrSinkClosed = errors.New("sink closed")
)

type asyncCall struct {
	ctx     context.Context
	op      string
	subject string
	run     func(ctx context.Context) error
}

// Async hands calls to a single worker goroutine, so the wrapped sink sees
// them in submission order while callers return immediately. A full queue
// drops the call; the returned error is logged by the Broadcaster.
type Async struct {
	sink   analytics.Sink
	queue  chan asyncCall
	done   chan struct{}
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewAsync(sink analytics.Sink, size int, logger *zap.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		sink:   sink,
		queue:  make(chan asyncCall, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()
	return a
}

func (a *Async) Name() string {
	return "async(" + analytics.SinkName(a.sink) + ")"
}

func (a *Async) Track(ctx context.Context, event models.Event) error {
	return a.enqueue(ctx, "track", event.Name, func(ctx context.Context) error {
		return a.sink.Track(ctx, event)
	})
}

func (a *Async) Identify(ctx context.Context, userID string, traits models.Properties) error {
	return a.enqueue(ctx, "identify", userID, func(ctx context.Context) error {
		return a.sink.Identify(ctx, userID, traits)
	})
}

func (a *Async) Page(ctx context.Context, name string) error {
	return a.enqueue(ctx, "page", name, func(ctx context.Context) error {
		return a.sink.Page(ctx, name)
	})
}

// Close stops accepting calls and waits for queued ones to finish or for
// ctx to expire.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining %s: %w", a.Name(), ctx.Err())
	}
}

func (a *Async) enqueue(ctx context.Context, op, subject string, run func(context.Context) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSinkClosed
	}

	call := asyncCall{ctx: context.WithoutCancel(ctx), op: op, subject: subject, run: run}
	select {
	case a.queue <- call:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for call := range a.queue {
		a.invoke(call)
	}
}

func (a *Async) invoke(call asyncCall) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Async sink panicked",
				zap.String("sink", a.Name()),
				zap.String("op", call.op),
				zap.Any("panic", r),
			)
		}
	}()
	if err := call.run(call.ctx); err != nil {
		a.logger.Warn("Async sink delivery failed",
			zap.String("sink", a.Name()),
			zap.String("op", call.op),
			zap.String("subject", call.subject),
			zap.Error(err),
		)
	}
}
