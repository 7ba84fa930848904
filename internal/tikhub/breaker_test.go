package tikhub

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestBreakerStartsClosed(t *testing.T) {
	b := newBreaker(3, 10*time.Second)

	if b.current() != breakerClosed {
		t.Fatalf("expected closed, got %s", b.current())
	}
	if !b.allow(time.Now()) {
		t.Fatal("closed breaker should allow calls")
	}
}

func TestBreakerOpensAfterFailureStreak(t *testing.T) {
	b := newBreaker(3, 10*time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		b.observe(now, errUpstream)
	}

	if b.current() != breakerOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.current())
	}
	if b.allow(now) {
		t.Fatal("open breaker should reject calls inside the cooldown")
	}
}

func TestBreakerSuccessClearsStreak(t *testing.T) {
	b := newBreaker(3, 10*time.Second)
	now := time.Now()

	b.observe(now, errUpstream)
	b.observe(now, errUpstream)
	b.observe(now, nil)
	b.observe(now, errUpstream)
	b.observe(now, errUpstream)

	if b.current() != breakerClosed {
		t.Fatalf("interleaved successes should keep it closed, got %s", b.current())
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := newBreaker(2, 10*time.Second)
	now := time.Now()

	b.observe(now, errUpstream)
	b.observe(now, errUpstream)

	if b.allow(now.Add(5 * time.Second)) {
		t.Fatal("cooldown not elapsed, call should be rejected")
	}

	later := now.Add(11 * time.Second)
	if !b.allow(later) {
		t.Fatal("expected a probe after the cooldown")
	}
	if b.current() != breakerProbing {
		t.Fatalf("expected probing, got %s", b.current())
	}

	b.observe(later, nil)
	if b.current() != breakerClosed {
		t.Fatalf("probe success should close, got %s", b.current())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := newBreaker(2, 10*time.Second)
	now := time.Now()

	b.observe(now, errUpstream)
	b.observe(now, errUpstream)

	later := now.Add(11 * time.Second)
	if !b.allow(later) {
		t.Fatal("expected a probe after the cooldown")
	}

	b.observe(later, errUpstream)
	if b.current() != breakerOpen {
		t.Fatalf("probe failure should reopen, got %s", b.current())
	}
	if b.allow(later.Add(time.Second)) {
		t.Fatal("cooldown restarts after a failed probe")
	}
}

func TestBreakerProbeBudgetIsBounded(t *testing.T) {
	b := newBreaker(2, 10*time.Second)
	now := time.Now()

	b.observe(now, errUpstream)
	b.observe(now, errUpstream)

	later := now.Add(11 * time.Second)
	allowed := 0
	for i := 0; i < 5; i++ {
		if b.allow(later) {
			allowed++
		}
	}
	if allowed != b.probeMax {
		t.Fatalf("expected %d probes, got %d", b.probeMax, allowed)
	}
}

func TestBreakerConcurrentAccess(t *testing.T) {
	b := newBreaker(5, 10*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now()
			b.allow(now)
			if i%2 == 0 {
				b.observe(now, errUpstream)
			} else {
				b.observe(now, nil)
			}
		}(i)
	}
	wg.Wait()

	// No assertion on phase: the interleaving is nondeterministic. The
	// race detector covers the locking.
	_ = b.current()
}
