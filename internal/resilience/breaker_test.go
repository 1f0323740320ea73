package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingCall(_ context.Context) error { return errors.New("provider error") }

func okCall(_ context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Call(ctx, failingCall)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after 3 failures, got %v", b.State())
	}

	err := b.Call(ctx, okCall)
	if !errors.Is(err, ErrProviderDown) {
		t.Errorf("expected ErrProviderDown from open breaker, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, okCall)
	_ = b.Call(ctx, failingCall)
	_ = b.Call(ctx, failingCall)

	if b.State() != BreakerClosed {
		t.Errorf("expected closed (failure streak broken), got %v", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: 10 * time.Second})
	now := time.Now()
	b.clockFunc = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	// Advance past the cooldown; breaker should admit a probe.
	now = now.Add(11 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %v", b.State())
	}

	if err := b.Call(ctx, okCall); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: 10 * time.Second})
	now := time.Now()
	b.clockFunc = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failingCall)
	now = now.Add(11 * time.Second)
	_ = b.Call(ctx, failingCall)

	if b.State() != BreakerOpen {
		t.Errorf("expected reopened after failed probe, got %v", b.State())
	}
}

func TestBreaker_CustomTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Threshold: 1,
		Cooldown:  time.Minute,
		Trip:      IsRetryable,
	})
	ctx := context.Background()

	// Permanent errors should not trip the breaker.
	_ = b.Call(ctx, func(_ context.Context) error { return errors.New("bad request") })
	if b.State() != BreakerClosed {
		t.Errorf("expected closed for non-tripping error, got %v", b.State())
	}

	_ = b.Call(ctx, func(_ context.Context) error { return Retryable(errors.New("down"), 503) })
	if b.State() != BreakerOpen {
		t.Errorf("expected open for tripping error, got %v", b.State())
	}
}

func TestCallVal_PreservesValue(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	val, err := CallVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "result", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "result" {
		t.Errorf("expected %q, got %q", "result", val)
	}
}

func TestBreakerSet_PerProvider(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = set.Get("serper").Call(ctx, failingCall)

	states := set.States()
	if states["serper"] != BreakerOpen {
		t.Errorf("expected serper breaker open, got %v", states["serper"])
	}
	if set.Get("duckduckgo").State() != BreakerClosed {
		t.Error("expected independent provider breaker to stay closed")
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	_ = b.Call(context.Background(), failingCall)
	b.Reset()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after reset, got %v", b.State())
	}
}
