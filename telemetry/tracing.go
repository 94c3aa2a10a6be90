// Package telemetry configures the OpenTelemetry tracer provider used by
// the HTTP middleware and the OTel sink.
package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewTracerProvider returns an always-sampling SDK provider whose ended
// spans are written to logger at debug level. Extra processors, such as a
// batch exporter, can be passed in.
func NewTracerProvider(logger *zap.Logger, processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger.Named("trace")}),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	return sdktrace.NewTracerProvider(opts...)
}

type logProcessor struct {
	logger *zap.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if ce := p.logger.Check(zap.DebugLevel, "Span ended"); ce != nil {
		fields := []zap.Field{
			zap.String("name", s.Name()),
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
		}
		if s.Parent().IsValid() {
			fields = append(fields, zap.String("parent_id", s.Parent().SpanID().String()))
		}
		ce.Write(fields...)
	}
}

func (p *logProcessor) Shutdown(context.Context) error { return nil }

func (p *logProcessor) ForceFlush(context.Context) error { return nil }
