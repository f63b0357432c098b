package routing

import (
	"context"

	"service-dispatch/internal/geo"
)

// averageSpeedKMH approximates urban courier travel for the stub.
const averageSpeedKMH = 25.0

// StubGateway is a deterministic routing gateway: straight-line haversine
// distance at a fixed average speed. Used when no routing URL is configured.
type StubGateway struct{}

// NewStubGateway creates a deterministic routing gateway.
func NewStubGateway() *StubGateway {
	return &StubGateway{}
}

// Distance computes the haversine distance and derives a duration from it.
func (StubGateway) Distance(_ context.Context, a, b geo.Point) (Result, error) {
	km := geo.HaversineKM(a, b)
	return Result{
		DistanceKM:      km,
		DurationMinutes: km / averageSpeedKMH * 60,
	}, nil
}
