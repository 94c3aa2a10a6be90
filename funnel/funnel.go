// Package funnel ties one visitor's analytics facade and cart store
// together and implements the multi-step flows of the funnel pages on top
// of them.
package funnel

import (
	"context"
	"errors"

	"fitfunnel/api/analytics"
	"fitfunnel/api/store"
)

var (
	ErrNoFunnel       = errors.New("no funnel in context")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrNoPlanSelected = errors.New("no plan selected")
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrUnknownAddOn   = errors.New("unknown add-on")
	ErrUnknownStep    = errors.New("unknown quiz step")
	ErrUnknownAnswer  = errors.New("answer is not an option for this step")
	ErrNoAnswer       = errors.New("quiz step has no answer")
)

// Funnel is the per-visitor context: one session-bearing analytics facade
// and the cart store that reports through it.
type Funnel struct {
	ID        string
	Analytics *analytics.Analytics
	Cart      *store.CartStore
}

// New builds a funnel whose events go to broadcaster.
func New(id string, broadcaster *analytics.Broadcaster, opts ...analytics.Option) *Funnel {
	a := analytics.New(nil, broadcaster, opts...)
	return &Funnel{
		ID:        id,
		Analytics: a,
		Cart:      store.NewCartStore(a),
	}
}

type funnelKey struct{}

func NewContext(ctx context.Context, f *Funnel) context.Context {
	return context.WithValue(ctx, funnelKey{}, f)
}

func FromContext(ctx context.Context) (*Funnel, bool) {
	f, ok := ctx.Value(funnelKey{}).(*Funnel)
	return f, ok && f != nil
}

// MustFromContext panics with ErrNoFunnel when ctx carries no funnel.
// Reaching funnel state outside a funnel is a programming error.
func MustFromContext(ctx context.Context) *Funnel {
	f, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoFunnel)
	}
	return f
}
