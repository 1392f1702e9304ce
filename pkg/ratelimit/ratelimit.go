package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
)

// Config describes a sliding-window limiter with an optional short burst
// window. The long window models the upstream per-minute quota; the burst
// window keeps a full long window from being spent in one thundering herd.
type Config struct {
	MaxPerWindow int
	Window       time.Duration
	BurstMax     int           // 0 disables the burst window
	BurstWindow  time.Duration
}

// Limiter is a process-local blocking rate limiter. Acquire blocks until
// both windows have capacity, then records the grant. Multi-process
// deployments divide quota statically per process.
type Limiter struct {
	mu     sync.Mutex
	cfg    Config
	grants []time.Time
	now    func() time.Time // swapped in tests
	sleep  func(context.Context, time.Duration) error
}

// New creates a limiter from the given configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a grant is available or the context expires. It
// fails only on context expiry, surfaced as RateLimitExhausted.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return apperrors.Wrap(apperrors.KindRateLimitExhausted, "rate limiter wait aborted", err)
		}
	}
}

// TryAcquire attempts a non-blocking grant.
func (l *Limiter) TryAcquire() bool {
	_, ok := l.tryAcquire()
	return ok
}

// tryAcquire records a grant when both windows have room, otherwise
// returns how long to wait before the earliest window frees a slot.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if wait := l.windowWait(now, l.cfg.MaxPerWindow, l.cfg.Window); wait > 0 {
		return wait, false
	}
	if l.cfg.BurstMax > 0 {
		if wait := l.windowWait(now, l.cfg.BurstMax, l.cfg.BurstWindow); wait > 0 {
			return wait, false
		}
	}

	l.grants = append(l.grants, now)
	return 0, true
}

// windowWait returns how long until the window has capacity; 0 means room.
func (l *Limiter) windowWait(now time.Time, max int, window time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	cutoff := now.Add(-window)
	inWindow := 0
	var oldest time.Time
	for _, g := range l.grants {
		if g.After(cutoff) {
			if inWindow == 0 {
				oldest = g
			}
			inWindow++
		}
	}
	if inWindow < max {
		return 0
	}
	wait := oldest.Add(window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// evict drops grants older than the long window; nothing outlives it.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	kept := l.grants[:0]
	for _, g := range l.grants {
		if g.After(cutoff) {
			kept = append(kept, g)
		}
	}
	l.grants = kept
}

// InFlight returns the number of grants inside the long window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.grants)
}
