package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"fitfunnel/api/models"
)

const otherLabel = "other"

// PrometheusSink counts events by canonical name. Names outside the
// catalog are folded into "other" to bound label cardinality.
type PrometheusSink struct {
	events     *prometheus.CounterVec
	pages      *prometheus.CounterVec
	identifies prometheus.Counter
}

func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "funnel",
			Name:      "events_total",
			Help:      "Tracked funnel events by event name.",
		}, []string{"event"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "funnel",
			Name:      "page_hits_total",
			Help:      "Native page hits by page name.",
		}, []string{"page"}),
		identifies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnel",
			Name:      "identifies_total",
			Help:      "Identify calls.",
		}),
	}
	for _, c := range []prometheus.Collector{s.events, s.pages, s.identifies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) Name() string { return "prometheus" }

func (s *PrometheusSink) Track(_ context.Context, event models.Event) error {
	s.events.WithLabelValues(eventLabel(event.Name)).Inc()
	return nil
}

func (s *PrometheusSink) Identify(context.Context, string, models.Properties) error {
	s.identifies.Inc()
	return nil
}

func (s *PrometheusSink) Page(_ context.Context, name string) error {
	s.pages.WithLabelValues(pageLabel(name)).Inc()
	return nil
}

func eventLabel(name string) string {
	switch {
	case models.IsCanonicalEvent(name),
		name == models.EventAnalyticsInitialized,
		name == models.EventAnalyticsReset:
		return name
	default:
		return otherLabel
	}
}

func pageLabel(name string) string {
	if models.IsFunnelPage(name) {
		return name
	}
	return otherLabel
}
