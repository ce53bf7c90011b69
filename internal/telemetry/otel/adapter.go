package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"voice-journal/backend/internal/telemetry"
)

// ScopeName is the instrumentation scope of emitted auth event records.
const ScopeName = "voice-journal.auth"

// recordEmitter is the part of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Noop{}
	}
	return NewEventEmitterWithLogger(provider.Logger(ScopeName))
}

// NewEventEmitterWithLogger wraps any record emitter, e.g. a test capture.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. The event type is the record body.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetSeverity(otellog.SeverityInfo)
	if event.Type == telemetry.EventLoginFailure || event.Type == telemetry.EventRefreshFailure {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if event.Type != "" {
		rec.SetBody(otellog.StringValue(string(event.Type)))
		rec.AddAttributes(otellog.String("event_type", string(event.Type)))
	}
	for _, kv := range []struct{ k, v string }{
		{"event_id", event.ID},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"source", event.Source},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
