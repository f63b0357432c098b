package domain

import "service-dispatch/internal/geo"

// Courier represents a delivery courier.
type Courier struct {
	ID           string
	Name         string
	Phone        string
	Approved     bool
	Blocked      bool
	Availability Availability
	// LastLocation is the location persisted on the courier record, used
	// as a fallback when no live presence entry exists.
	LastLocation *geo.Point
	// Outstanding-load counters.
	PendingOrders   int
	CancelledOrders int
	TotalOrders     int
}

// Candidate is a courier annotated for selection: live location resolved
// through the presence directory and an optional travel distance.
type Candidate struct {
	Courier
	Location   *geo.Point
	DistanceKM float64
}
