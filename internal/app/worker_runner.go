package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/expiry"
	"service-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the background worker: the order consumer plus the
// offer-expiry sweep.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

func workerRun(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger logx.Logger,
	consumer *kafka.Consumer,
	watcher *expiry.Watcher,
) error {
	if watcher == nil {
		return fmt.Errorf("expiry watcher is nil: worker container misconfigured")
	}
	defer closeWorker(pool, logger, consumer)

	logger.Info("service-dispatch-worker started")

	// A nil consumer (no Kafka config) returns immediately, the watcher
	// still has to hold the worker open until shutdown.
	errCh := make(chan error, 2)
	go func() {
		errCh <- watcher.Run(ctx)
	}()
	if consumer != nil {
		go func() {
			errCh <- consumer.Run(ctx)
		}()
	}
	return <-errCh
}

func closeWorker(pool *pgxpool.Pool, logger logx.Logger, consumer *kafka.Consumer) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close error", logx.Any("err", err))
	}
	if pool != nil {
		pool.Close()
	}
}
