package records

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

const (
	// defaultProactiveRate throttles to ~2 requests/second regardless of
	// what the API advertises.
	defaultProactiveRate = 2.0

	// minRemainingBuffer is the quota floor below which we wait for the
	// window to reset instead of spending the last requests.
	minRemainingBuffer = 10

	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
	headerRetryAfter    = "Retry-After"
)

// throttle combines proactive client-side pacing with reactive quota
// tracking from the API's rate limit headers.
type throttle struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	bucket    *rate.Limiter
}

func newThrottle(requestsPerSecond float64) *throttle {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultProactiveRate
	}
	return &throttle{
		remaining: minRemainingBuffer + 1,
		bucket:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// wait blocks until a request may be sent: first the token bucket, then
// a hold until window reset when the advertised quota is nearly spent.
func (t *throttle) wait(ctx context.Context) error {
	if err := t.bucket.Wait(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	remaining := t.remaining
	resetTime := t.resetTime
	t.mu.Unlock()

	if remaining < minRemainingBuffer && time.Now().Before(resetTime) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(resetTime)):
		}
	}
	return nil
}

// observe updates quota state from response headers and reports whether
// the response itself was a throttle rejection. A 429 wraps
// domain.ErrFetch so the caller's retry policy applies.
func (t *throttle) observe(resp *http.Response) error {
	if resp == nil {
		return nil
	}

	t.mu.Lock()
	if v := resp.Header.Get(headerRateRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			t.remaining = n
		}
	}
	if v := resp.Header.Get(headerRateReset); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.resetTime = time.Unix(unix, 0)
		}
	}
	t.mu.Unlock()

	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	if v := resp.Header.Get(headerRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			t.mu.Lock()
			t.resetTime = time.Now().Add(time.Duration(seconds) * time.Second)
			t.mu.Unlock()
		}
	}

	t.mu.Lock()
	resetTime := t.resetTime
	t.mu.Unlock()
	return fmt.Errorf("%w: rate limited until %s", domain.ErrFetch, resetTime.Format(time.RFC3339))
}
