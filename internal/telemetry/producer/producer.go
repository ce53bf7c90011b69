// Package producer publishes auth events to a message broker (Kafka).
package producer

import (
	"voice-journal/backend/internal/telemetry"
)

// Producer emits auth events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
