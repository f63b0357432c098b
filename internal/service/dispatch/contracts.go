//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch

package dispatch

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/routing"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/service/fanout"
)

type taskRepository interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	ListByIDs(ctx context.Context, ids []string) ([]*domain.Task, error)
	InsertBatch(ctx context.Context, b *domain.BatchTask) error
	GetBatch(ctx context.Context, id string) (*domain.BatchTask, error)
}

type courierRepository interface {
	Get(ctx context.Context, id string) (*domain.Courier, error)
	ListCandidates(ctx context.Context, nameFilter string) ([]domain.Courier, error)
	IncPending(ctx context.Context, id string) error
	DecPending(ctx context.Context, id string) (bool, error)
	IncCancelled(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, a domain.Availability) error
}

type offerRepository interface {
	Insert(ctx context.Context, o *domain.Offer) error
	Get(ctx context.Context, id string) (*domain.Offer, error)
	GetPending(ctx context.Context, taskID, courierID string) (*domain.Offer, error)
	GetLatest(ctx context.Context, taskID, courierID string) (*domain.Offer, error)
	Resolve(ctx context.Context, id string, to domain.OfferStatus) (bool, error)
	ListPendingByCourier(ctx context.Context, courierID string) ([]domain.Offer, error)
}

// taskMachine is the slice of the task state machine the engine delegates to
// after winning the offer resolution.
type taskMachine interface {
	Accept(ctx context.Context, taskID, courierID string) (*domain.Task, error)
	AcceptBatch(ctx context.Context, batchID, courierID string) (*domain.BatchTask, error)
}

// geofenceStore supplies the merchant's service-area polygon. A merchant
// without a polygon disables geofence filtering for its tasks.
type geofenceStore interface {
	ServiceArea(ctx context.Context, merchantID string) (geo.Polygon, error)
}

type presencePort interface {
	Location(userID string) (geo.Point, bool)
	Availability(userID string) domain.Availability
	SetAvailability(userID string, a domain.Availability)
}

type routingGateway interface {
	Distance(ctx context.Context, a, b geo.Point) (routing.Result, error)
}

type eventSink interface {
	Broadcast(ctx context.Context, event string, ec fanout.EventContext)
}
