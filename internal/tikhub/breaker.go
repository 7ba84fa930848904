package tikhub

import (
	"sync"
	"time"
)

type breakerState uint8

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerProbing:
		return "probing"
	}
	return "unknown"
}

// breaker stops hammering the upstream API after a streak of failures.
// While open it rejects every call until the cooldown passes, then lets
// a small probe budget through; one probe success closes it again.
// Callers pass the clock so state transitions stay testable.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	probeMax  int

	streak   int // consecutive failures
	openedAt time.Time
	phase    breakerState
	probes   int
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold < 1 {
		threshold = 5
	}
	if cooldown < time.Second {
		cooldown = 30 * time.Second
	}
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		probeMax:  2,
	}
}

// allow reports whether a call may go out now.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.Sub(b.openedAt) >= b.cooldown {
			b.phase = breakerProbing
			b.probes = 1
			return true
		}
		return false
	default:
		if b.probes < b.probeMax {
			b.probes++
			return true
		}
		return false
	}
}

// observe records the outcome of a call. A nil error clears the failure
// streak and closes a probing breaker; a probe failure reopens it
// immediately.
func (b *breaker) observe(now time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.streak = 0
		if b.phase == breakerProbing {
			b.phase = breakerClosed
		}
		return
	}

	b.streak++
	b.openedAt = now
	if b.phase == breakerProbing || b.streak >= b.threshold {
		b.phase = breakerOpen
		b.probes = 0
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}
