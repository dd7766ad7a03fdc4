package infra

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache[int](ttl)
	c.now = clock.now
	return c, clock
}

// ── Cache ──

func TestCacheGetSet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a): got %d, %v", v, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("a", 1)
	clock.advance(30 * time.Second)
	c.Set("b", 2)

	clock.advance(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("b was stored later and should survive, got %d, %v", v, ok)
	}

	c.Cleanup()
	if c.Len() != 1 {
		t.Errorf("Len after Cleanup: got %d, want 1", c.Len())
	}
}

func TestCacheFlush(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Flush()
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone")
	}
	if c.Len() != 0 {
		t.Errorf("Len after Flush: got %d", c.Len())
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	calls := 0
	create := func() (int, error) { calls++; return 42, nil }

	for i := 0; i < 3; i++ {
		v, cached, err := c.GetOrCreate("k", create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate: got %d, %v", v, err)
		}
		if want := i > 0; cached != want {
			t.Errorf("call %d: cached = %v, want %v", i, cached, want)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, cached, err := c.GetOrCreate("bad", func() (int, error) { return 0, boom }); !errors.Is(err, boom) || cached {
		t.Errorf("GetOrCreate error: got %v, cached %v", err, cached)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("errors must not be cached")
	}
}

func TestCacheRunJanitorStops(t *testing.T) {
	c := NewCache[int](time.Nanosecond)
	c.Set("a", 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never removed the expired entry")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

// ── RateLimiter ──

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow() {
		t.Error("third request should be throttled")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d throttled by an unlimited limiter", i)
		}
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	rl.Allow()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait with a cancelled context should fail")
	}
}

func TestRateLimiterWaitUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}
