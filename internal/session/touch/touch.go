// Package touch decides which authenticated requests write last_used for their session.
// last_used is advisory, so a Gate may drop writes freely; it must never block a request.
package touch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Gate reports whether a last_used write for sessionID should happen at now.
type Gate interface {
	Allow(ctx context.Context, sessionID string, now time.Time) bool
}

// Always allows every write.
type Always struct{}

func (Always) Allow(context.Context, string, time.Time) bool { return true }

// New returns Always for interval <= 0 and a MemoryGate otherwise.
func New(interval time.Duration) Gate {
	if interval <= 0 {
		return Always{}
	}
	return NewMemoryGate(interval)
}

// MemoryGate allows one write per session per interval within this process.
type MemoryGate struct {
	interval time.Duration

	mu        sync.Mutex
	last      map[string]time.Time
	lastPrune time.Time
}

// NewMemoryGate returns a MemoryGate with the given interval.
func NewMemoryGate(interval time.Duration) *MemoryGate {
	return &MemoryGate{interval: interval, last: make(map[string]time.Time)}
}

// Allow records now for sessionID when the previous allowed write is at least interval old.
func (g *MemoryGate) Allow(_ context.Context, sessionID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)
	if prev, ok := g.last[sessionID]; ok && now.Sub(prev) < g.interval {
		return false
	}
	g.last[sessionID] = now
	return true
}

// pruneLocked drops entries older than interval, at most once per interval.
func (g *MemoryGate) pruneLocked(now time.Time) {
	if now.Sub(g.lastPrune) < g.interval {
		return
	}
	for id, t := range g.last {
		if now.Sub(t) >= g.interval {
			delete(g.last, id)
		}
	}
	g.lastPrune = now
}

// Len returns the number of tracked sessions.
func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

const redisKeyPrefix = "session:touch:"

// RedisGate shares the debounce window across processes with SET NX PX.
// On Redis errors it allows the write.
type RedisGate struct {
	client   redis.Cmdable
	interval time.Duration
	logger   *zap.Logger
}

// NewRedisGate returns a RedisGate. logger may be nil.
func NewRedisGate(client redis.Cmdable, interval time.Duration, logger *zap.Logger) *RedisGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGate{client: client, interval: interval, logger: logger}
}

// Allow claims the per-session key for interval. The key's TTL is the window; now is unused.
func (g *RedisGate) Allow(ctx context.Context, sessionID string, _ time.Time) bool {
	if g.interval <= 0 {
		return true
	}
	ok, err := g.client.SetNX(ctx, redisKeyPrefix+sessionID, 1, g.interval).Result()
	if err != nil {
		g.logger.Warn("touch gate: redis unavailable, allowing write",
			zap.String("session_id", sessionID), zap.Error(err))
		return true
	}
	return ok
}
