package sinks

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fitfunnel/api/models"
)

const tracerName = "fitfunnel/sinks"

// OTelSink records each call as a short span, parented to whatever span the
// request context carries.
type OTelSink struct {
	tracer trace.Tracer
}

// NewOTelSink uses tp, or the global provider when tp is nil.
func NewOTelSink(tp trace.TracerProvider) *OTelSink {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelSink{tracer: tp.Tracer(tracerName)}
}

func (s *OTelSink) Name() string { return "otel" }

func (s *OTelSink) Track(ctx context.Context, event models.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("event.name", event.Name),
		attribute.String("session.id", event.SessionID),
	}
	if event.UserID != "" {
		attrs = append(attrs, attribute.String("user.id", event.UserID))
	}
	attrs = append(attrs, propertyAttributes(event.Properties)...)

	_, span := s.tracer.Start(ctx, "analytics.track",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.End()
	return nil
}

func (s *OTelSink) Identify(ctx context.Context, userID string, _ models.Properties) error {
	_, span := s.tracer.Start(ctx, "analytics.identify",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	span.End()
	return nil
}

func (s *OTelSink) Page(ctx context.Context, name string) error {
	_, span := s.tracer.Start(ctx, "analytics.page",
		trace.WithAttributes(attribute.String("page.name", name)),
	)
	span.End()
	return nil
}

// propertyAttributes flattens top-level properties. Nested values are
// JSON-encoded; nulls are skipped.
func propertyAttributes(props models.Properties) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(props))
	for k, v := range props {
		key := "event.prop." + k
		switch val := v.(type) {
		case nil:
			continue
		case string:
			attrs = append(attrs, attribute.String(key, val))
		case bool:
			attrs = append(attrs, attribute.Bool(key, val))
		case int:
			attrs = append(attrs, attribute.Int(key, val))
		case int64:
			attrs = append(attrs, attribute.Int64(key, val))
		case float64:
			attrs = append(attrs, attribute.Float64(key, val))
		default:
			data, err := json.Marshal(val)
			if err != nil {
				continue
			}
			attrs = append(attrs, attribute.String(key, string(data)))
		}
	}
	return attrs
}
