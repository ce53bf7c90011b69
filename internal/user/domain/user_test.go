package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "alice@example.com")
	}
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "alice.smith@example.com"} {
		if err := ValidateEmail(ok); err != nil {
			t.Errorf("ValidateEmail(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "alice", "Alice <a@b.co>", "a@"} {
		if err := ValidateEmail(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateEmail(%q): want ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"bob", true},
		{"bob_smith.99-x", true},
		{"bo", false},
		{strings.Repeat("a", 51), false},
		{"bob smith", false},
		{"bob@home", false},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ValidateUsername(%q): %v", tt.in, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateUsername(%q): want ErrInvalidInput, got %v", tt.in, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345678"); err != nil {
		t.Errorf("ValidatePassword 8 chars: %v", err)
	}
	if err := ValidatePassword("1234567"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ValidatePassword short: want ErrInvalidInput, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ValidatePassword long: want ErrInvalidInput, got %v", err)
	}
}

func TestUser_Validate(t *testing.T) {
	u := &User{ID: "u1", Username: "bob", Email: "bob@example.com", PasswordHash: "h", MaxDailyRecords: 5}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	u.PasswordHash = ""
	if err := u.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate without hash: want ErrInvalidInput, got %v", err)
	}
}

func TestUser_Limits(t *testing.T) {
	reset := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	u := &User{DailyRecordsUsed: 3, MaxDailyRecords: 5, LastRecordReset: reset}

	got := u.Limits(reset.Add(2 * time.Hour))
	if got.UsedToday != 3 || got.Remaining != 2 || got.MaxDaily != 5 {
		t.Errorf("same day Limits = %+v", got)
	}
	if want := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC); !got.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", got.ResetTime, want)
	}

	next := u.Limits(time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC))
	if next.UsedToday != 0 || next.Remaining != 5 {
		t.Errorf("later day Limits = %+v, want counter reset", next)
	}
	if want := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC); !next.ResetTime.Equal(want) {
		t.Errorf("later day ResetTime = %v, want %v", next.ResetTime, want)
	}
}

func TestUser_ConsumeRecord(t *testing.T) {
	day := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	u := &User{MaxDailyRecords: 2, LastRecordReset: day}

	for i := 0; i < 2; i++ {
		if err := u.ConsumeRecord(day.Add(time.Hour)); err != nil {
			t.Fatalf("ConsumeRecord %d: %v", i, err)
		}
	}
	if err := u.ConsumeRecord(day.Add(2 * time.Hour)); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("ConsumeRecord at cap: want ErrDailyLimitReached, got %v", err)
	}
	if u.DailyRecordsUsed != 2 {
		t.Errorf("DailyRecordsUsed = %d, want 2", u.DailyRecordsUsed)
	}

	tomorrow := day.Add(20 * time.Hour)
	if err := u.ConsumeRecord(tomorrow); err != nil {
		t.Fatalf("ConsumeRecord next day: %v", err)
	}
	if u.DailyRecordsUsed != 1 || !u.LastRecordReset.Equal(tomorrow) {
		t.Errorf("after reset: used=%d last=%v", u.DailyRecordsUsed, u.LastRecordReset)
	}
}
