package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("busy"), 503), true},
		{"wrapped explicit", fmt.Errorf("push: %w", NewTransientError(errors.New("slow down"), 429)), true},
		{"connection reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"deadline message", errors.New("Post \"https://api.hubapi.com\": context deadline exceeded"), true},
		{"plain", errors.New("HTTP error: 400 Bad Request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		if IsTransientStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestOutboxEntry_FailReschedules(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := OutboxEntry{MaxAttempts: 3, Status: OutboxPending}
	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2}

	e.Fail(NewTransientError(errors.New("503"), 503), p, now)

	if e.Status != OutboxPending || e.Attempts != 1 || e.ErrorType != ErrorTransient {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !e.NextAttemptAt.Equal(now.Add(time.Second)) {
		t.Errorf("next attempt = %v, want %v", e.NextAttemptAt, now.Add(time.Second))
	}
	if !e.CanRetry() {
		t.Error("expected entry to be retryable")
	}
}

func TestOutboxEntry_FailPermanentIsDead(t *testing.T) {
	e := OutboxEntry{MaxAttempts: 5, Status: OutboxPending}
	e.Fail(errors.New("HTTP error: 401 Unauthorized"), DefaultRetryPolicy(), time.Now())

	if e.Status != OutboxDead || e.ErrorType != ErrorPermanent {
		t.Errorf("expected dead permanent entry, got %+v", e)
	}
	if e.CanRetry() {
		t.Error("dead entry must not be retryable")
	}
}

func TestOutboxEntry_FailExhausted(t *testing.T) {
	e := OutboxEntry{MaxAttempts: 2, Attempts: 1, Status: OutboxPending}
	e.Fail(NewTransientError(errors.New("timeout"), 0), DefaultRetryPolicy(), time.Now())

	if e.Status != OutboxDead {
		t.Errorf("expected dead after exhausting attempts, got %s", e.Status)
	}
}
