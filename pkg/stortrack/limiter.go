package stortrack

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/resilience"
)

// DefaultHourlyLimit is the remote service's documented call allowance.
const DefaultHourlyLimit = 3000

// Clock abstracts time so the limiter and backoff can run on a simulated
// clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	return resilience.Sleep(ctx, d)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// HourlyLimiter admits at most Limit call starts within any rolling hour.
// It keeps a sliding log of start times; one limiter is shared by every
// caller of a client, including concurrent backfill workers.
type HourlyLimiter struct {
	limit  int
	window time.Duration
	clock  Clock

	mu     sync.Mutex
	starts []time.Time

	// onStart observes each admitted start under the lock.
	onStart func(time.Time)
}

// NewHourlyLimiter creates a limiter. A non-positive limit falls back to
// DefaultHourlyLimit; a nil clock uses the wall clock.
func NewHourlyLimiter(limit int, clock Clock) *HourlyLimiter {
	if limit <= 0 {
		limit = DefaultHourlyLimit
	}
	if clock == nil {
		clock = RealClock()
	}
	return &HourlyLimiter{limit: limit, window: time.Hour, clock: clock}
}

// Limit returns the configured per-hour allowance.
func (l *HourlyLimiter) Limit() int { return l.limit }

// Wait blocks until a call may start, then records the start. The check and
// the record happen under one lock, so concurrent callers never overshoot.
func (l *HourlyLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "stortrack: limiter wait")
		}

		l.mu.Lock()
		now := l.clock.Now()
		l.evict(now)
		if len(l.starts) < l.limit {
			l.starts = append(l.starts, now)
			if l.onStart != nil {
				l.onStart(now)
			}
			l.mu.Unlock()
			return nil
		}
		sleepFor := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		zap.L().Info("stortrack: hourly limit reached, waiting",
			zap.Int("limit", l.limit),
			zap.Duration("sleep", sleepFor),
		)
		if err := l.clock.Sleep(ctx, sleepFor); err != nil {
			return eris.Wrap(err, "stortrack: limiter wait")
		}
	}
}

// Drain is the response to an upstream rate-limit signal: it sleeps until
// the current window's hour boundary (oldest logged start + 1h) and then
// forgets the logged starts.
func (l *HourlyLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock.Now()
	l.evict(now)
	var sleepFor time.Duration
	if len(l.starts) > 0 {
		sleepFor = l.starts[0].Add(l.window).Sub(now)
	}
	l.mu.Unlock()

	if sleepFor > 0 {
		zap.L().Warn("stortrack: rate limited upstream, draining window",
			zap.Duration("sleep", sleepFor),
		)
		if err := l.clock.Sleep(ctx, sleepFor); err != nil {
			return eris.Wrap(err, "stortrack: limiter drain")
		}
	}

	l.mu.Lock()
	l.starts = l.starts[:0]
	l.mu.Unlock()
	return nil
}

// Count returns the number of starts inside the current rolling hour.
func (l *HourlyLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.clock.Now())
	return len(l.starts)
}

// evict drops starts older than one window. Caller holds mu.
func (l *HourlyLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.starts) && !l.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.starts = append(l.starts[:0], l.starts[i:]...)
	}
}
