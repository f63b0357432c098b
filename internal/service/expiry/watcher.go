// Package expiry auto-rejects assignment offers whose acceptance window
// elapsed without a courier decision.
package expiry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/fanout"
)

// Watcher periodically sweeps pending offers past their deadline.
type Watcher struct {
	offers           offerRepository
	couriers         courierRepository
	events           eventSink
	expiredCounter   prometheus.Counter
	sweepInterval    time.Duration
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewWatcher creates an expiry watcher.
func NewWatcher(offers offerRepository, couriers courierRepository, events eventSink,
	expiredCounter prometheus.Counter, sweepInterval, timeout time.Duration, logger logx.Logger) *Watcher {

	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Watcher{
		offers:           offers,
		couriers:         couriers,
		events:           events,
		expiredCounter:   expiredCounter,
		sweepInterval:    sweepInterval,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("expiry watcher started", logx.Duration("interval", w.sweepInterval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.SweepExpired(ctx); err != nil {
				w.logger.Error("sweep failed", logx.Any("err", err))
			}
		}
	}
}

// SweepExpired rejects every pending offer past its deadline and returns
// the number of offers it actually resolved. An offer raced away by a
// concurrent accept or reject is skipped without bookkeeping: whoever won
// the conditional update already did it.
func (w *Watcher) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.operationTimeout)
	defer cancel()

	expired, err := w.offers.ListExpired(ctx, w.now())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, o := range expired {
		won, err := w.offers.Resolve(ctx, o.ID, domain.OfferRejected)
		if err != nil {
			w.logger.Error("resolve expired offer failed",
				logx.String("offer_id", o.ID),
				logx.Any("err", err),
			)
			continue
		}
		if !won {
			continue
		}

		if _, err := w.couriers.DecPending(ctx, o.CourierID); err != nil {
			w.logger.Error("dec pending failed",
				logx.String("courier_id", o.CourierID),
				logx.Any("err", err),
			)
		}
		if err := w.couriers.IncCancelled(ctx, o.CourierID); err != nil {
			w.logger.Error("inc cancelled failed",
				logx.String("courier_id", o.CourierID),
				logx.Any("err", err),
			)
		}

		w.events.Broadcast(ctx, domain.EventOrderRejected, fanout.EventContext{
			TaskID:    o.TaskID,
			CourierID: o.CourierID,
		})

		if w.expiredCounter != nil {
			w.expiredCounter.Inc()
		}
		swept++

		w.logger.Info("offer expired",
			logx.String("event", "offer_expired"),
			logx.String("offer_id", o.ID),
			logx.String("task_id", o.TaskID),
			logx.String("courier_id", o.CourierID),
		)
	}
	return swept, nil
}
