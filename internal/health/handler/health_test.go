package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) PingContext(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestChecker_ServeHTTP(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		code     int
		status   string
		database string
	}{
		{"memory store", nil, http.StatusOK, "healthy", "memory"},
		{"db up", &fakePinger{}, http.StatusOK, "healthy", "connected"},
		{"db down", &fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "unhealthy", "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewChecker(tt.db, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var rep Report
			if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rep.Status != tt.status || rep.Database != tt.database || rep.Timestamp.IsZero() {
				t.Errorf("report = %+v", rep)
			}
		})
	}
}

func TestChecker_Watch(t *testing.T) {
	db := &fakePinger{err: errors.New("refused")}
	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewChecker(db, nil).Watch(ctx, hs, 10*time.Millisecond) }()

	waitStatus(t, hs, healthpb.HealthCheckResponse_NOT_SERVING)
	db.set(nil)
	waitStatus(t, hs, healthpb.HealthCheckResponse_SERVING)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func waitStatus(t *testing.T, hs *health.Server, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err == nil && resp.GetStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("serving status never became %v", want)
}
