package migrate

import (
	"errors"
	"os"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, Up); !errors.Is(err, ErrNoDSN) {
			t.Errorf("Run(%q): want ErrNoDSN, got %v", dsn, err)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, ok := range []string{"up", "down"} {
		if _, err := ParseDirection(ok); err != nil {
			t.Errorf("ParseDirection(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "UP", "Up", "sideways"} {
		if _, err := ParseDirection(bad); err == nil {
			t.Errorf("ParseDirection(%q): want error", bad)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	if err := Run("postgres://localhost/test", Direction("both")); err == nil {
		t.Error("Run with invalid direction should return error")
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test"} {
		if err := Run(dsn, Up); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestRun_UpDown(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	v, dirty, ok, err := Version(dsn)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if !ok || dirty || v < 2 {
		t.Errorf("Version = %d dirty=%v ok=%v, want >= 2 clean", v, dirty, ok)
	}
	if err := Run(dsn, Up); err != nil {
		t.Errorf("Run up twice should be a no-op, got %v", err)
	}
}
