package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// TooManyRequestsMessage is the body message of a rejected request.
const TooManyRequestsMessage = "Demasiadas solicitudes. Por favor, espera unos minutos e inténtalo de nuevo."

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limiter Limiter
	// KeyFunc extracts the key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Prefix namespaces keys, so several limits can share one Limiter.
	Prefix string
}

// RateLimit rejects requests over the limit with 429. Limiter failures let the
// request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := cfg.Limiter.Allow(r.Context(), cfg.Prefix+keyFunc(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				wait := max(time.Until(d.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, TooManyRequestsMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// window holds the counts of the current and the previous fixed window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// SlidingWindow is an in-process Limiter. The previous window's count is
// weighted by how much of it still overlaps the sliding window.
type SlidingWindow struct {
	max    int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow allows max requests per period and key.
func NewSlidingWindow(max int, period time.Duration) *SlidingWindow {
	return &SlidingWindow{
		max:     max,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow records a request for key if it fits.
func (s *SlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := s.now()
	start := now.Truncate(s.period)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	switch {
	case !ok:
		w = &window{start: start}
		s.windows[key] = w
	case start.Sub(w.start) == s.period:
		w.start, w.prev, w.curr = start, w.curr, 0
	case start.Sub(w.start) > s.period:
		w.start, w.prev, w.curr = start, 0, 0
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(s.period)
	count := w.prev*overlap + w.curr

	d := Decision{Limit: s.max, ResetAt: w.start.Add(s.period)}
	if count >= float64(s.max) {
		return d, nil
	}
	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(s.max)-count-1), 0)
	return d, nil
}

// Cleanup drops keys idle for two periods.
func (s *SlidingWindow) Cleanup() {
	cutoff := s.now().Truncate(s.period).Add(-s.period)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, w := range s.windows {
		if w.start.Before(cutoff) {
			delete(s.windows, k)
		}
	}
}

// RunCleanup calls Cleanup every two periods until ctx is done.
func (s *SlidingWindow) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(2 * s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
