// Package ratelimit implements a reset-based sliding window: the counter
// rolls over wholesale once the window elapses rather than decaying per
// request. The same algorithm runs against an in-process table or redis.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config describes one guarded endpoint.
type Config struct {
	Limit  int
	Window time.Duration
	Prefix string
}

const defaultPrefix = "default"

func (c Config) key(identifier string) string {
	prefix := strings.TrimSpace(c.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + ":" + identifier
}

// Result is the outcome of a single Check call.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter interface {
	Check(ctx context.Context, identifier string, cfg Config) (Result, error)
}

type record struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are not shared
// across instances; a limit is only precisely enforced per instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Check(ctx context.Context, identifier string, cfg Config) (Result, error) {
	_ = ctx
	now := m.now()
	key := cfg.key(identifier)

	m.mu.Lock()
	rec, ok := m.records[key]
	if !ok || !now.Before(rec.windowStart.Add(cfg.Window)) {
		rec = &record{count: 1, windowStart: now}
		m.records[key] = rec
	} else {
		rec.count++
	}
	count := rec.count
	windowStart := rec.windowStart
	m.mu.Unlock()

	return evaluate(count, windowStart, now, cfg), nil
}

func evaluate(count int, windowStart, now time.Time, cfg Config) Result {
	resetAt := windowStart.Add(cfg.Window)
	res := Result{
		Allowed: count <= cfg.Limit,
		ResetAt: resetAt,
	}
	if remaining := cfg.Limit - count; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfter = ceilSeconds(resetAt.Sub(now))
	}
	return res
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return secs * time.Second
}

// IdentifierFromRequest extracts the caller identity for rate limiting.
// Proxy headers are preferred in order; without any, every caller shares
// the loopback identity.
func IdentifierFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return "127.0.0.1"
}
