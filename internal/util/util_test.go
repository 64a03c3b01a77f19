package util

import (
	"context"
	"testing"
	"time"
)

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := NewLogger(level, "json"); logger == nil {
			t.Errorf("NewLogger(%q, json) returned nil", level)
		}
	}
	if logger := NewLogger("info", "text"); logger == nil {
		t.Error(`NewLogger("info", "text") returned nil`)
	}
}

func TestRateLimiterFirstTokenImmediate(t *testing.T) {
	rl := NewRateLimiter(60)

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait took %v, want near-immediate", elapsed)
	}
}

func TestRateLimiterRespectsCancel(t *testing.T) {
	// One token per minute: the first Wait consumes the initial token, the
	// second must block until cancelled.
	rl := NewRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait returned unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait error = %v, want context.DeadlineExceeded", err)
	}
}
