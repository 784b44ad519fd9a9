package limiter

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum delay between requests to the same host.
// Different hosts do not wait on each other, so sources crawled in parallel
// only throttle when they share a site.
type HostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
	clock    Timer
}

// NewHostLimiter creates a limiter; it returns nil when interval is not positive.
// A nil *HostLimiter never waits.
func NewHostLimiter(interval time.Duration, clock Timer) *HostLimiter {
	if interval <= 0 {
		return nil
	}

	if clock == nil {
		clock = Clock{}
	}

	return &HostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		clock:    clock,
	}
}

// Wait blocks until host may be contacted again or ctx is done.
// The slot is reserved before sleeping so concurrent callers queue up
// one interval apart.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}

	now := l.clock.Now()

	l.mu.Lock()
	reservation := l.limiterLocked(strings.ToLower(host)).ReserveN(now, 1)
	l.mu.Unlock()

	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	if err := l.clock.Sleep(ctx, delay); err != nil {
		reservation.CancelAt(l.clock.Now())

		return err
	}

	return nil
}

func (l *HostLimiter) limiterLocked(host string) *rate.Limiter {
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[host] = limiter
	}

	return limiter
}
