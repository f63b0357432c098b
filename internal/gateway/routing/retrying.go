package routing

import (
	"context"
	"errors"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// RetryConfig describes retry behavior of the RetryingGateway.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingGateway decorates a routing gateway with bounded retries.
type RetryingGateway struct {
	next    Gateway
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
	sleep   func(time.Duration)
}

// NewRetryingGateway wraps next with retry behavior. Returns nil for a nil next.
func NewRetryingGateway(next Gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg, sleep: time.Sleep}
}

// Distance retries the underlying call on upstream failures with backoff.
func (g *RetryingGateway) Distance(ctx context.Context, a, b geo.Point) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		res, err := g.next.Distance(ctx, a, b)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("routing gateway retry",
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Any("err", err),
		)
		if !sleepWithContext(ctx, g.sleep, delay) {
			break
		}
	}
	return Result{}, lastErr
}

func isRetryable(err error) bool {
	return errors.Is(err, apperr.ErrUpstream)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << (attempt - 1)
	if max > 0 && d > max {
		d = max
	}
	return d
}

func sleepWithContext(ctx context.Context, sleep func(time.Duration), d time.Duration) bool {
	if sleep == nil {
		sleep = time.Sleep
	}
	done := make(chan struct{})
	go func() {
		sleep(d)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}
