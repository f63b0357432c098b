package domain

import (
	"time"

	"service-dispatch/internal/geo"
)

type (
	// DeliveryMode represents the kind of delivery an order requires.
	DeliveryMode string
	// Schedule represents when the delivery should run.
	Schedule string
	// StopKind distinguishes pickup stops from drop stops.
	StopKind string
)

// List of possible delivery modes
const (
	ModeHomeDelivery DeliveryMode = "home_delivery"
	ModeTakeAway     DeliveryMode = "take_away"
	ModePickAndDrop  DeliveryMode = "pick_and_drop"
	ModeCustomOrder  DeliveryMode = "custom_order"
)

// List of possible schedules
const (
	ScheduleOnDemand  Schedule = "on_demand"
	ScheduleScheduled Schedule = "scheduled"
)

// List of stop kinds
const (
	StopPickup StopKind = "pickup"
	StopDrop   StopKind = "drop"
)

// Valid checks if the DeliveryMode is valid.
func (m DeliveryMode) Valid() bool {
	switch m {
	case ModeHomeDelivery, ModeTakeAway, ModePickAndDrop, ModeCustomOrder:
		return true
	}
	return false
}

// Stop is a pickup or drop point within a task with its own status lifecycle.
type Stop struct {
	Kind        StopKind
	Status      StopStatus
	Location    geo.Point
	Address     string
	OrderID     string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Task is a deliverable unit derived from one confirmed order, or from
// several orders when it belongs to a batch.
type Task struct {
	ID         string
	OrderID    string
	MerchantID string
	CustomerID string
	CourierID  *string
	BatchID    *string
	Status     TaskStatus
	Mode       DeliveryMode
	Schedule   Schedule
	Pickups    []Stop
	Drops      []Stop
	// DistanceKM accumulates the distance covered by the courier across
	// delivery legs, sourced from the routing collaborator.
	DistanceKM float64
	CreatedAt  time.Time
}

// AllDropsCompleted reports whether every drop stop has been completed.
func (t *Task) AllDropsCompleted() bool {
	if len(t.Drops) == 0 {
		return false
	}
	for _, d := range t.Drops {
		if d.Status != StopCompleted {
			return false
		}
	}
	return true
}

// Active reports whether the task still needs courier work.
func (t *Task) Active() bool {
	return !t.Status.Terminal()
}

// BatchTask groups several tasks onto one courier route sharing a pickup.
// Member tasks must share the same delivery mode and first pickup location.
type BatchTask struct {
	ID        string
	TaskIDs   []string
	CourierID string
	Mode      DeliveryMode
	Status    TaskStatus
	Pickup    Stop
	Drops     []Stop
	CreatedAt time.Time
}
