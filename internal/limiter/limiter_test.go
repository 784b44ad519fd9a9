package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTimer struct {
	now      time.Time
	sleeps   []time.Duration
	sleepErr error
}

func (t *fakeTimer) Now() time.Time {
	return t.now
}

func (t *fakeTimer) Sleep(ctx context.Context, duration time.Duration) error {
	t.sleeps = append(t.sleeps, duration)
	if t.sleepErr != nil {
		return t.sleepErr
	}

	return ctx.Err()
}

func TestNewHostLimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval time.Duration
		timer    Timer
		wantNil  bool
	}{
		{name: "zero interval", interval: 0, wantNil: true},
		{name: "negative interval", interval: -time.Second, wantNil: true},
		{name: "nil timer fallback", interval: time.Second, timer: nil, wantNil: false},
		{name: "custom timer", interval: time.Second, timer: &fakeTimer{}, wantNil: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			limiter := NewHostLimiter(tt.interval, tt.timer)
			if tt.wantNil && limiter != nil {
				t.Fatalf("expected nil limiter")
			}

			if !tt.wantNil && limiter == nil {
				t.Fatalf("expected non-nil limiter")
			}
		})
	}
}

func TestHostLimiterNilNeverWaits(t *testing.T) {
	t.Parallel()

	var limiter *HostLimiter
	if err := limiter.Wait(context.Background(), "example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHostLimiterSpacesSameHost(t *testing.T) {
	t.Parallel()

	clock := &fakeTimer{now: baseTime()}
	limiter := NewHostLimiter(100*time.Millisecond, clock)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "example.com"); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}

	clock.now = baseTime().Add(40 * time.Millisecond)
	if err := limiter.Wait(ctx, "EXAMPLE.com"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}

	if len(clock.sleeps) != 1 || clock.sleeps[0] != 60*time.Millisecond {
		t.Fatalf("sleeps = %v; want [60ms]", clock.sleeps)
	}
}

func TestHostLimiterIndependentHosts(t *testing.T) {
	t.Parallel()

	clock := &fakeTimer{now: baseTime()}
	limiter := NewHostLimiter(time.Second, clock)
	ctx := context.Background()

	for _, host := range []string{"a.example", "b.example", "c.example"} {
		if err := limiter.Wait(ctx, host); err != nil {
			t.Fatalf("unexpected error for %s: %v", host, err)
		}
	}

	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleeps across hosts, got %v", clock.sleeps)
	}
}

func TestHostLimiterNoSleepAfterInterval(t *testing.T) {
	t.Parallel()

	clock := &fakeTimer{now: baseTime()}
	limiter := NewHostLimiter(100*time.Millisecond, clock)
	ctx := context.Background()

	_ = limiter.Wait(ctx, "example.com")
	clock.now = baseTime().Add(150 * time.Millisecond)
	_ = limiter.Wait(ctx, "example.com")

	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", clock.sleeps)
	}
}

func TestHostLimiterReturnsSleepError(t *testing.T) {
	t.Parallel()

	errSleep := errors.New("sleep failed")
	clock := &fakeTimer{now: baseTime(), sleepErr: errSleep}
	limiter := NewHostLimiter(100*time.Millisecond, clock)

	_ = limiter.Wait(context.Background(), "example.com")
	clock.now = baseTime().Add(time.Millisecond)

	err := limiter.Wait(context.Background(), "example.com")
	if !errors.Is(err, errSleep) {
		t.Fatalf("expected sleep error, got: %v", err)
	}
}

func baseTime() time.Time {
	return time.Date(2026, time.February, 12, 12, 0, 0, 0, time.UTC)
}
