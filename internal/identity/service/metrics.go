package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "voice-journal/backend/internal/identity"

// instruments holds the auth counters. Built from the global providers so they pick up
// whatever telemetry/otel.Providers.SetGlobal installed.
type instruments struct {
	tracer   trace.Tracer
	logins   metric.Int64Counter
	refresh  metric.Int64Counter
	resolves metric.Int64Counter
	logouts  metric.Int64Counter
	swept    metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)
	ins := &instruments{tracer: otel.Tracer(instrumentationName)}
	ins.logins = counter(meter, "auth.logins", "Password logins and registrations by outcome")
	ins.refresh = counter(meter, "auth.refreshes", "Access token refreshes by outcome")
	ins.resolves = counter(meter, "auth.resolves", "Bearer token resolutions by outcome")
	ins.logouts = counter(meter, "auth.logouts", "Sessions deactivated by logout")
	ins.swept = counter(meter, "auth.sessions_swept", "Sessions deleted or deactivated by the sweep")
	return ins
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func outcome(result string) metric.AddOption {
	return metric.WithAttributes(attribute.String("result", result))
}

// span starts a span for an auth operation.
func (ins *instruments) span(ctx context.Context, name string) (context.Context, trace.Span) {
	return ins.tracer.Start(ctx, "identity."+name)
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
