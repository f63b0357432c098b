//go:generate mockgen -source=contracts.go -destination=tasks_mocks_test.go -package=tasks

package tasks

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/routing"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/service/fanout"
)

type taskRepository interface {
	Insert(ctx context.Context, t *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	AssignCourier(ctx context.Context, taskID, courierID string) (bool, error)
	SetStopStatus(ctx context.Context, taskID string, kind domain.StopKind, idx int,
		from, to domain.StopStatus, at time.Time) (bool, error)
	StopStatus(ctx context.Context, taskID string, kind domain.StopKind, idx int) (domain.StopStatus, error)
	AddDistance(ctx context.Context, taskID string, km float64) error
	MarkCompleted(ctx context.Context, taskID string) (bool, error)
	Cancel(ctx context.Context, taskID string) (bool, error)
	CountActiveByCourier(ctx context.Context, courierID string) (int, error)
	GetBatch(ctx context.Context, id string) (*domain.BatchTask, error)
	SetBatchStatus(ctx context.Context, id string, to domain.TaskStatus) error
	SetBatchStopStatus(ctx context.Context, batchID string, kind domain.StopKind, idx int,
		from, to domain.StopStatus, at time.Time) (bool, error)
	BatchStopStatus(ctx context.Context, batchID string, kind domain.StopKind, idx int) (domain.StopStatus, error)
}

type courierRepository interface {
	Get(ctx context.Context, id string) (*domain.Courier, error)
	DecPending(ctx context.Context, id string) (bool, error)
	IncCancelled(ctx context.Context, id string) error
	IncTotal(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, a domain.Availability) error
}

type offerRepository interface {
	GetPending(ctx context.Context, taskID, courierID string) (*domain.Offer, error)
	Resolve(ctx context.Context, id string, to domain.OfferStatus) (bool, error)
}

type routingGateway interface {
	Distance(ctx context.Context, a, b geo.Point) (routing.Result, error)
}

type eventSink interface {
	Broadcast(ctx context.Context, event string, ec fanout.EventContext)
}

type availabilitySink interface {
	SetAvailability(userID string, a domain.Availability)
}
