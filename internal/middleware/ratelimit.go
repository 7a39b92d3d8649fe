package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows. A non-positive request count
// or window disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type MemoryLimiter struct {
	requests int
	window   time.Duration
	mu       sync.Mutex
	clients  map[string]*clientWindow
}

type clientWindow struct {
	count   int
	expires time.Time
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string]*clientWindow),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.requests <= 0 || l.window <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	state, ok := l.clients[key]
	if !ok || now.After(state.expires) {
		l.sweep(now)
		l.clients[key] = &clientWindow{count: 1, expires: now.Add(l.window)}
		return true, nil
	}

	if state.count >= l.requests {
		return false, nil
	}
	state.count++
	return true, nil
}

// sweep drops expired windows so idle clients do not accumulate.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, state := range l.clients {
		if now.After(state.expires) {
			delete(l.clients, key)
		}
	}
}

// RedisLimiter shares windows across replicas with INCR + EXPIRE.
type RedisLimiter struct {
	rdb      *redis.Client
	prefix   string
	requests int
	window   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:      rdb,
		prefix:   "marketplace:ratelimit:",
		requests: requests,
		window:   window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.requests <= 0 || l.window <= 0 {
		return true, nil
	}
	fullKey := l.prefix + key
	count, err := l.rdb.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.requests), nil
}

// RateLimit rejects clients over their window with 429. Limiter failures are
// logged and the request is let through.
func RateLimit(limiter Limiter, window time.Duration, proxies TrustedProxies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), proxies.ClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TrustedProxies are the peers allowed to report the client address through
// X-Forwarded-For and X-Real-IP. Requests from anyone else are keyed by their
// socket address.
type TrustedProxies []netip.Prefix

func ParseTrustedProxies(values []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !strings.Contains(value, "/") {
			addr, err := netip.ParseAddr(value)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", value, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", value, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

func (t TrustedProxies) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the socket address unless the peer is a trusted proxy. Then
// the forwarded chain is walked from the right and the first hop that is not
// itself a trusted proxy wins.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !t.trusts(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !t.trusts(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
