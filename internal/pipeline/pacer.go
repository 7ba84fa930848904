package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive upstream calls. Injectable so tests can
// run with no delay.
type Pacer interface {
	Wait(ctx context.Context) error
}

type ratePacer struct {
	lim *rate.Limiter
}

// NewRatePacer enforces a minimum delay between calls. The burst of one
// lets the first call through immediately.
func NewRatePacer(minDelay time.Duration) Pacer {
	return &ratePacer{lim: rate.NewLimiter(rate.Every(minDelay), 1)}
}

func (p *ratePacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

// NopPacer never waits.
type NopPacer struct{}

func (NopPacer) Wait(context.Context) error { return nil }
