// Package handler serves readiness over HTTP and feeds the gRPC health service.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voice-journal/backend/internal/server/httpjson"
)

const pingTimeout = 2 * time.Second

// Pinger checks a dependency, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the /health response body.
type Report struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether every checked dependency is up.
func (r Report) Healthy() bool { return r.Status == "healthy" }

// Checker checks readiness. A nil Pinger means the in-memory store is in use.
type Checker struct {
	db  Pinger
	log *zap.Logger
	now func() time.Time
}

// NewChecker returns a Checker for db, which may be nil.
func NewChecker(db Pinger, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{db: db, log: logger, now: time.Now}
}

// Check pings the database with a short timeout.
func (c *Checker) Check(ctx context.Context) Report {
	rep := Report{Status: "healthy", Database: "memory", Timestamp: c.now().UTC()}
	if c.db == nil {
		return rep
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		c.log.Warn("health: database ping failed", zap.Error(err))
		rep.Status, rep.Database = "unhealthy", "disconnected"
		return rep
	}
	rep.Database = "connected"
	return rep
}

// ServeHTTP writes the Report; 503 when unhealthy.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := c.Check(r.Context())
	status := http.StatusOK
	if !rep.Healthy() {
		status = http.StatusServiceUnavailable
	}
	httpjson.Write(w, status, rep)
}

// Watch sets the overall serving status of hs from Check every interval until ctx is done.
func (c *Checker) Watch(ctx context.Context, hs *health.Server, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c.update(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return nil
		case <-ticker.C:
			c.update(ctx, hs)
		}
	}
}

func (c *Checker) update(ctx context.Context, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if !c.Check(ctx).Healthy() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
}
