package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type TokenParser interface {
	Parse(raw string) (shop.Actor, error)
}

type actorKey struct{}

func actorFrom(ctx context.Context) shop.Actor {
	a, _ := ctx.Value(actorKey{}).(shop.Actor)
	return a
}

// Authenticate puts the bearer token's Actor in the request context. Requests
// without a token pass through anonymous; a bad token is rejected.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				writeError(w, r, shop.Unauthorized("authorization must be a bearer token"))
				return
			}
			a, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
		})
	}
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r.Context()).UserID == 0 {
			writeError(w, r, shop.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TraceEvents tags events published while serving the request with its id.
func TraceEvents(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(shop.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// IPLimiter throttles per client address.
type IPLimiter struct {
	Rate  rate.Limit
	Burst int

	mu       sync.Mutex
	limiters map[string]*visitor
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPLimiter(every time.Duration, burst int) *IPLimiter {
	return &IPLimiter{Rate: rate.Every(every), Burst: burst, limiters: map[string]*visitor{}}
}

func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.limiters == nil {
		l.limiters = map[string]*visitor{}
	}
	v, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) > 10000 {
			l.sweep(now)
		}
		v = &visitor{lim: rate.NewLimiter(l.Rate, l.Burst)}
		l.limiters[ip] = v
	}
	v.seen = now
	return v.lim.Allow()
}

func (l *IPLimiter) sweep(now time.Time) {
	for ip, v := range l.limiters {
		if now.Sub(v.seen) > 10*time.Minute {
			delete(l.limiters, ip)
		}
	}
}

func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many attempts, try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
