package router

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig allows Requests per Window for each client, with Burst on top.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	byKey    map[string]*rate.Limiter
	lastTrim time.Time
}

func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastTrim) > 5*time.Minute {
		for k, l := range s.byKey {
			if l.TokensAt(now) >= float64(s.burst) {
				delete(s.byKey, k)
			}
		}
		s.lastTrim = now
	}

	l, ok := s.byKey[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.byKey[key] = l
	}

	return l
}

// RateLimit throttles a route per client IP (as resolved by the IP middleware).
// A zero config disables the limiter.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil
	}

	set := &limiterSet{
		limit:    rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:    max(cfg.Burst, 1),
		byKey:    make(map[string]*rate.Limiter),
		lastTrim: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			res := set.get(r.RemoteAddr, now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				writeJSON(w, errorResponse{Message: "Too many requests, please slow down"}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
