package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Errors are logged at warn level. emitter and event may be nil.
// The goroutine uses a detached context so request cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, logger *zap.Logger, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	if _, ok := emitter.(Noop); ok {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil && logger != nil {
			logger.Warn("telemetry: async emit failed",
				zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}()
}
