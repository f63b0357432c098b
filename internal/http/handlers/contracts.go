package handlers

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/presence"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/tasks"
)

type dispatchUsecase interface {
	SelectCandidates(ctx context.Context, taskID string, opts dispatch.SelectOptions) ([]domain.Candidate, error)
	Assign(ctx context.Context, taskID, courierID string) (*domain.Offer, error)
	Batch(ctx context.Context, taskIDs []string, courierID string) (*domain.BatchTask, *domain.Offer, error)
	AcceptOffer(ctx context.Context, taskOrBatchID, courierID string) error
	RejectOffer(ctx context.Context, taskOrBatchID, courierID string) error
	PendingOffers(ctx context.Context, courierID string) ([]dispatch.PendingOffer, error)
}

// NewDispatchUsecase wires a dispatch.Engine into a dispatchUsecase.
func NewDispatchUsecase(e *dispatch.Engine) dispatchUsecase {
	return e
}

type taskUsecase interface {
	StartPickup(ctx context.Context, taskID, courierID string, idx int) error
	ReachPickup(ctx context.Context, taskID, courierID string, idx int, at geo.Point, force bool) error
	StartDelivery(ctx context.Context, taskID, courierID string, idx int) error
	ReachDelivery(ctx context.Context, taskID, courierID string, idx int, at geo.Point) error
	Cancel(ctx context.Context, taskID, courierID string) error
	StartBatchPickup(ctx context.Context, batchID, courierID string) error
	ReachBatchPickup(ctx context.Context, batchID, courierID string, at geo.Point) error
	StartBatchDrop(ctx context.Context, batchID, courierID string, idx int) error
	ReachBatchDrop(ctx context.Context, batchID, courierID string, idx int, at geo.Point) error
	CancelBatch(ctx context.Context, batchID, courierID string) error
}

// NewTaskUsecase wires a tasks.Service into a taskUsecase.
func NewTaskUsecase(svc *tasks.Service) taskUsecase {
	return svc
}

type presencePort interface {
	Register(userID string, conn presence.Conn, token string)
	Disconnect(userID string)
	UpdateLocation(userID string, pt geo.Point)
	SetAvailability(userID string, a domain.Availability)
	Availability(userID string) domain.Availability
}

// NewPresencePort wires a presence.Directory into a presencePort.
func NewPresencePort(d *presence.Directory) presencePort {
	return d
}

type locationStore interface {
	UpdateLastLocation(ctx context.Context, id string, pt geo.Point) error
	SetAvailability(ctx context.Context, id string, a domain.Availability) error
}

// NewLocationStore wires a CourierRepo into a locationStore.
func NewLocationStore(r *repository.CourierRepo) locationStore {
	return r
}

type notificationStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.NotificationLogEntry, error)
}

// NewNotificationStore wires a NotificationLogRepo into a notificationStore.
func NewNotificationStore(r *repository.NotificationLogRepo) notificationStore {
	return r
}
