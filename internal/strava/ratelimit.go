package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strava rate limits:
// - 100 requests per 15 minutes (wait out the window)
// - 1000 requests per day (fail the run)

// RateLimiter tracks both Strava request windows. The 15-minute
// window blocks until it resets; the daily window surfaces
// ErrDailyLimitExceeded instead of sleeping for hours.
type RateLimiter struct {
	mu sync.Mutex

	shortLimit    int
	shortUsage    int
	shortResetsAt time.Time

	dailyLimit    int
	dailyUsage    int
	dailyResetsAt time.Time

	// Paces successive requests (~6 req/s) independent of the windows
	pacer *rate.Limiter

	// Overridable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter with the given window quotas
func NewRateLimiter(shortLimit, dailyLimit int) *RateLimiter {
	r := &RateLimiter{
		shortLimit: shortLimit,
		dailyLimit: dailyLimit,
		pacer:      rate.NewLimiter(rate.Every(150*time.Millisecond), 1),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	now := r.now()
	r.shortResetsAt = nextQuarterHour(now)
	r.dailyResetsAt = nextMidnightUTC(now)
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Strava windows reset on the quarter hour and at midnight UTC
func nextQuarterHour(t time.Time) time.Time {
	return t.Truncate(15 * time.Minute).Add(15 * time.Minute)
}

func nextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Acquire blocks until a request may be made. It waits out an
// exhausted 15-minute window, paces successive requests, and returns
// ErrDailyLimitExceeded when the daily quota is gone.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()

	now := r.now()
	if !now.Before(r.shortResetsAt) {
		r.shortUsage = 0
		r.shortResetsAt = nextQuarterHour(now)
	}
	if !now.Before(r.dailyResetsAt) {
		r.dailyUsage = 0
		r.dailyResetsAt = nextMidnightUTC(now)
	}

	if r.dailyUsage >= r.dailyLimit {
		r.mu.Unlock()
		return ErrDailyLimitExceeded
	}

	if r.shortUsage >= r.shortLimit {
		wait := r.shortResetsAt.Sub(now)
		r.mu.Unlock()
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
		r.mu.Lock()
		r.shortUsage = 0
		r.shortResetsAt = nextQuarterHour(r.now())
	}

	r.shortUsage++
	r.dailyUsage++
	r.mu.Unlock()

	return r.pacer.Wait(ctx)
}

// UpdateFromHeaders resyncs counters from Strava's rate limit headers:
// X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usage := h.Get("X-RateLimit-Usage"); usage != "" {
		if short, daily, ok := parsePair(usage); ok {
			r.shortUsage = short
			r.dailyUsage = daily
		}
	}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		if short, daily, ok := parsePair(limit); ok {
			r.shortLimit = short
			r.dailyLimit = daily
		}
	}
}

func parsePair(s string) (short, daily int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	short, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	daily, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return short, daily, true
}

// Status returns remaining requests in each window
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortLimit - r.shortUsage, r.dailyLimit - r.dailyUsage
}

// Usage returns current usage counts
func (r *RateLimiter) Usage() (shortUsage, dailyUsage int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortUsage, r.dailyUsage
}
