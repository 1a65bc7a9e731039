package journal

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPause        = 1500 * time.Millisecond
	DefaultFailurePause = 2 * time.Second
)

// Pacer spaces out generation calls: an optional requests-per-minute cap before each call,
// and a fixed pause after each one (longer after a failure).
type Pacer struct {
	Pause        time.Duration
	FailurePause time.Duration

	limiter *rate.Limiter
}

// NewPacer builds a pacer. rpm <= 0 disables the per-minute cap.
func NewPacer(pause, failurePause time.Duration, rpm int) *Pacer {
	p := &Pacer{Pause: pause, FailurePause: failurePause}
	if rpm > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return p
}

// Wait blocks until the per-minute cap allows another call.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// After sleeps the post-request pause.
func (p *Pacer) After(ctx context.Context, failed bool) error {
	if p == nil {
		return ctx.Err()
	}
	d := p.Pause
	if failed {
		d += p.FailurePause
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
