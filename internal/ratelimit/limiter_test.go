package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	now := start
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestCheckAllowsExactlyLimitCalls(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := Config{Limit: 5, Window: time.Hour, Prefix: "signup"}

	for i := 1; i <= 5; i++ {
		res, err := limiter.Check(ctx, "203.0.113.7", cfg)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("call %d: remaining = %d, want %d", i, res.Remaining, 5-i)
		}
	}

	res, err := limiter.Check(ctx, "203.0.113.7", cfg)
	if err != nil {
		t.Fatalf("sixth check: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth call within the window should be rejected")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Hour {
		t.Fatalf("retry after = %v, want positive and at most the window", res.RetryAfter)
	}
}

func TestCheckWindowRollover(t *testing.T) {
	ctx := context.Background()
	limiter, now := newTestLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := Config{Limit: 2, Window: time.Minute}

	for i := 0; i < 5; i++ {
		if _, err := limiter.Check(ctx, "a", cfg); err != nil {
			t.Fatalf("warmup check: %v", err)
		}
	}

	*now = now.Add(time.Minute)

	res, err := limiter.Check(ctx, "a", cfg)
	if err != nil {
		t.Fatalf("check after rollover: %v", err)
	}
	if !res.Allowed {
		t.Fatal("first call of a fresh window should be allowed")
	}
	if res.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1 after rollover", res.Remaining)
	}
}

func TestCheckZeroLimitAlwaysRejects(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Now())
	cfg := Config{Limit: 0, Window: time.Minute}

	res, err := limiter.Check(ctx, "a", cfg)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Allowed {
		t.Fatal("limit 0 must reject the very first call")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
}

func TestCheckSeparateIdentifiersAndPrefixes(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Now())
	cfg := Config{Limit: 1, Window: time.Minute, Prefix: "checkout"}

	if res, _ := limiter.Check(ctx, "a", cfg); !res.Allowed {
		t.Fatal("identifier a should be allowed")
	}
	if res, _ := limiter.Check(ctx, "b", cfg); !res.Allowed {
		t.Fatal("identifier b has its own counter")
	}
	if res, _ := limiter.Check(ctx, "a", cfg); res.Allowed {
		t.Fatal("identifier a is out of budget")
	}

	other := Config{Limit: 1, Window: time.Minute, Prefix: "verify"}
	if res, _ := limiter.Check(ctx, "a", other); !res.Allowed {
		t.Fatal("a different prefix keeps a separate counter")
	}
}

func TestIdentifierFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/checkout", nil)
	r.Header.Set("X-Forwarded-For", " 198.51.100.4 , 10.0.0.1")
	if got := IdentifierFromRequest(r); got != "198.51.100.4" {
		t.Fatalf("X-Forwarded-For: got %q", got)
	}

	r = httptest.NewRequest("POST", "/checkout", nil)
	r.Header.Set("X-Real-IP", "198.51.100.5")
	if got := IdentifierFromRequest(r); got != "198.51.100.5" {
		t.Fatalf("X-Real-IP: got %q", got)
	}

	r = httptest.NewRequest("POST", "/checkout", nil)
	r.Header.Set("CF-Connecting-IP", "198.51.100.6")
	if got := IdentifierFromRequest(r); got != "198.51.100.6" {
		t.Fatalf("CF-Connecting-IP: got %q", got)
	}

	r = httptest.NewRequest("POST", "/checkout", nil)
	if got := IdentifierFromRequest(r); got != "127.0.0.1" {
		t.Fatalf("fallback: got %q", got)
	}
}
