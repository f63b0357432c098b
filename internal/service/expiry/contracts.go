//go:generate mockgen -source=contracts.go -destination=expiry_mocks_test.go -package=expiry

package expiry

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/fanout"
)

type offerRepository interface {
	ListExpired(ctx context.Context, now time.Time) ([]domain.Offer, error)
	Resolve(ctx context.Context, id string, to domain.OfferStatus) (bool, error)
}

type courierRepository interface {
	DecPending(ctx context.Context, id string) (bool, error)
	IncCancelled(ctx context.Context, id string) error
}

type eventSink interface {
	Broadcast(ctx context.Context, event string, ec fanout.EventContext)
}
