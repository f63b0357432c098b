package app

import (
	"context"

	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/tasks"
	"service-dispatch/internal/transport/kafka"
)

type orderCreator interface {
	CreateFromOrder(ctx context.Context, o tasks.OrderInfo) (*domain.Task, error)
}

func makeOrderHandler(svc *tasks.Service, logger logx.Logger) kafka.HandleFunc {
	return orderHandler(svc, logger)
}

// orderHandler turns confirmed-order events into unassigned tasks.
// A duplicate order on redelivery is treated as done so the offset commits.
func orderHandler(svc orderCreator, logger logx.Logger) kafka.HandleFunc {
	return func(ctx context.Context, o tasks.OrderInfo) error {
		_, err := svc.CreateFromOrder(ctx, o)
		if err == nil {
			return nil
		}
		if repository.IsDuplicate(err) {
			logger.Info("order already has a task, skipping",
				logx.String("order_id", o.OrderID),
			)
			return nil
		}
		return err
	}
}

func newOrderConsumer(cfg *config.Config, logger logx.Logger, h kafka.HandleFunc) (*kafka.Consumer, error) {
	return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, h)
}
