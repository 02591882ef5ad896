package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"grabarr/internal/ratelimit"
)

func TestAllowRejectsBeyondLimit(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewWithClock(func() time.Time { return current })

	for i := 0; i < 3; i++ {
		res := limiter.Allow("client-a", 3, time.Minute)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 2-i {
			t.Fatalf("request %d remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}

	res := limiter.Allow("client-a", 3, time.Minute)
	if res.Allowed {
		t.Fatal("fourth request should be rejected")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
	if want := current.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Fatalf("reset at %v, want %v", res.ResetAt, want)
	}
	if got := res.RetryAfter(current.Add(20 * time.Second)); got != 40*time.Second {
		t.Fatalf("retry after = %v, want 40s", got)
	}
}

func TestWindowResetsAfterElapse(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewWithClock(func() time.Time { return current })

	if res := limiter.Allow("k", 1, time.Minute); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res := limiter.Allow("k", 1, time.Minute); res.Allowed {
		t.Fatal("second request in window should be rejected")
	}

	current = current.Add(time.Minute)
	res := limiter.Allow("k", 1, time.Minute)
	if !res.Allowed {
		t.Fatal("request after window elapse should be allowed")
	}
	if want := current.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Fatalf("new window reset at %v, want %v", res.ResetAt, want)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewWithClock(func() time.Time { return current })

	if res := limiter.Allow("a", 1, time.Minute); !res.Allowed {
		t.Fatal("key a should be allowed")
	}
	if res := limiter.Allow("a", 1, time.Minute); res.Allowed {
		t.Fatal("key a should be exhausted")
	}
	if res := limiter.Allow("b", 1, time.Minute); !res.Allowed {
		t.Fatal("key b should have its own window")
	}
}

func TestExpiredWindowsArePurged(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewWithClock(func() time.Time { return current })

	for _, key := range []string{"a", "b", "c"} {
		limiter.Allow(key, 5, time.Minute)
	}
	if got := limiter.Len(); got != 3 {
		t.Fatalf("tracked keys = %d, want 3", got)
	}

	current = current.Add(2 * time.Minute)
	limiter.Allow("d", 5, time.Minute)
	if got := limiter.Len(); got != 1 {
		t.Fatalf("tracked keys after purge = %d, want 1", got)
	}
}

func TestZeroLimitAlwaysRejects(t *testing.T) {
	limiter := ratelimit.New()
	if res := limiter.Allow("k", 0, time.Minute); res.Allowed {
		t.Fatal("zero limit should reject")
	}
}

func TestConcurrentAllowStaysWithinLimit(t *testing.T) {
	limiter := ratelimit.New()

	const workers = 32
	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := limiter.Allow("shared", 10, time.Minute); res.Allowed {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	if count != 10 {
		t.Fatalf("allowed %d requests, want exactly 10", count)
	}
}
