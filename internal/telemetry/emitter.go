package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names an auth lifecycle event.
type EventType string

const (
	EventLogin          EventType = "login"
	EventLoginFailure   EventType = "login_failure"
	EventRegister       EventType = "register"
	EventRefresh        EventType = "refresh"
	EventRefreshFailure EventType = "refresh_failure"
	EventLogout         EventType = "logout"
	EventLogoutAll      EventType = "logout_all"
	EventSweep          EventType = "sweep"
	EventUserDeleted    EventType = "user_deleted"
	EventUserDisabled   EventType = "user_deactivated"
)

// Event is one auth event. It never carries token values or passwords.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent returns an Event with a fresh ID.
func NewEvent(typ EventType, source, userID, sessionID string, at time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		SessionID: sessionID,
		Source:    source,
		CreatedAt: at.UTC(),
	}
}

// With sets one metadata key and returns e.
func (e *Event) With(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// EventEmitter emits auth events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Emit(context.Context, *Event) error { return nil }

// Multi fans an event out to every emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
