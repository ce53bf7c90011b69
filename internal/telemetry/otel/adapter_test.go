package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"voice-journal/backend/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogin}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrsOf(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := telemetry.NewEvent(telemetry.EventLogout, "http", "user1", "sess1", at).With("sessions_remaining", "2")
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if got := rec.Body().AsString(); got != "logout" {
		t.Errorf("body = %q, want logout", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v", rec.Severity())
	}
	want := map[string]string{
		"event_id": event.ID, "user_id": "user1", "session_id": "sess1",
		"event_type": "logout", "source": "http", "meta.sessions_remaining": "2",
	}
	attrs := attrsOf(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_FailureEventsAreWarnings(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	for _, typ := range []telemetry.EventType{telemetry.EventLoginFailure, telemetry.EventRefreshFailure} {
		if err := em.Emit(context.Background(), &telemetry.Event{Type: typ}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if cap.rec.Severity() != otellog.SeverityWarn {
			t.Errorf("%s severity = %v, want warn", typ, cap.rec.Severity())
		}
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventSweep}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventSweep, Source: "worker"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	attrs := attrsOf(cap.rec)
	for _, k := range []string{"user_id", "session_id", "event_id"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("%s should not be set", k)
		}
	}
	if attrs["source"] != "worker" || cap.calls != 1 {
		t.Errorf("attrs = %v calls = %d", attrs, cap.calls)
	}
}
