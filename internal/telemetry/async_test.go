package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	done    chan struct{}
}

func newMockEmitter(err error) *mockEventEmitter {
	return &mockEventEmitter{emitErr: err, done: make(chan struct{}, 8)}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func TestEmitAsync_NilInputs(t *testing.T) {
	EmitAsync(nil, zap.NewNop(), NewEvent(EventLogin, "test", "u1", "s1", time.Now()))
	m := newMockEmitter(nil)
	EmitAsync(m, zap.NewNop(), nil)
	if len(m.getEvents()) != 0 {
		t.Error("nil event should not be emitted")
	}
}

func TestEmitAsync_Delivers(t *testing.T) {
	m := newMockEmitter(errors.New("sink down"))
	ev := NewEvent(EventLogout, "test", "u1", "s1", time.Now()).With("sessions_remaining", "0")
	EmitAsync(m, zap.NewNop(), ev)
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	got := m.getEvents()
	if len(got) != 1 || got[0].Type != EventLogout || got[0].Metadata["sessions_remaining"] != "0" {
		t.Errorf("events = %+v", got)
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := newMockEmitter(nil)
	bad := newMockEmitter(errors.New("boom"))
	m := Multi{ok, nil, bad}
	err := m.Emit(context.Background(), NewEvent(EventRefresh, "test", "u1", "s1", time.Now()))
	if err == nil {
		t.Error("Multi should return the failing emitter's error")
	}
	if len(ok.getEvents()) != 1 || len(bad.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	a := NewEvent(EventLogin, "http", "u1", "s1", at)
	b := NewEvent(EventLogin, "http", "u1", "s1", at)
	if a.ID == "" || a.ID == b.ID {
		t.Error("events should get distinct IDs")
	}
	if a.CreatedAt.Location() != time.UTC {
		t.Error("CreatedAt should be UTC")
	}
}
