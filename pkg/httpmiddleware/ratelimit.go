package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc defaults to ClientKey.
	KeyFunc func(*http.Request) string
}

// window holds counts of the current and previous fixed windows; the
// effective count weights the previous one by its overlap with the sliding
// window.
type window struct {
	start     time.Time
	curr      float64
	prev      float64
	prevStart time.Time
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.cfg.Window
	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(size)}
		l.windows[key] = w
	}
	if now.Sub(w.start) >= size {
		w.prev, w.prevStart = w.curr, w.start
		w.curr = 0
		w.start = now.Truncate(size)
		if now.Sub(w.prevStart) >= 2*size {
			w.prev = 0
		}
	}

	overlap := 1 - now.Sub(w.start).Seconds()/size.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	count := w.prev*overlap + w.curr
	reset = w.start.Add(size)
	if count >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	remaining = int(float64(l.cfg.Max) - count - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, reset, true
}

func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

// RateLimit limits requests per key. When ctx is non-nil, stale keys are
// evicted in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientKey
	}
	l := &limiter{cfg: cfg, windows: make(map[string]*window)}
	if ctx != nil {
		go func() {
			ticker := time.NewTicker(2 * cfg.Window)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					l.evict(now)
				}
			}
		}()
	}

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := math.Ceil(max(time.Until(reset), 0).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(wait)))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller by bearer credential when present, so
// clients sharing an address keep separate budgets, and by IP otherwise.
func ClientKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		sum := sha256.Sum256([]byte(token))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + ClientIP(r)
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
