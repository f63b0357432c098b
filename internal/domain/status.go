package domain

type (
	// TaskStatus represents the overall status of a delivery task.
	TaskStatus string
	// StopStatus represents the status of a single pickup or drop stop.
	StopStatus string
	// OfferStatus represents the status of an assignment offer.
	OfferStatus string
	// Availability represents the live availability of a courier.
	Availability string
)

// List of possible task statuses
const (
	TaskUnassigned TaskStatus = "unassigned"
	TaskAssigned   TaskStatus = "assigned"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// List of possible stop statuses
const (
	StopPending   StopStatus = "pending"
	StopAccepted  StopStatus = "accepted"
	StopStarted   StopStatus = "started"
	StopCompleted StopStatus = "completed"
	StopCancelled StopStatus = "cancelled"
)

// List of possible offer statuses
const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCancelled OfferStatus = "cancelled"
)

// List of possible courier availabilities
const (
	AvailabilityFree     Availability = "free"
	AvailabilityBusy     Availability = "busy"
	AvailabilityInactive Availability = "inactive"
)

var stopRank = map[StopStatus]int{
	StopPending:   0,
	StopAccepted:  1,
	StopStarted:   2,
	StopCompleted: 3,
}

// Terminal reports whether the task status is terminal.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// Terminal reports whether the stop status is terminal.
func (s StopStatus) Terminal() bool {
	return s == StopCompleted || s == StopCancelled
}

// CanAdvanceTo reports whether a stop may move from s to next.
// Stop statuses are monotonic: pending → accepted → started → completed;
// cancelled is reachable from any non-terminal state.
func (s StopStatus) CanAdvanceTo(next StopStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StopCancelled {
		return true
	}
	cur, ok := stopRank[s]
	if !ok {
		return false
	}
	nxt, ok := stopRank[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// Terminal reports whether the offer status is terminal.
func (s OfferStatus) Terminal() bool {
	return s != OfferPending
}

// Valid checks if the Availability is valid.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityFree, AvailabilityBusy, AvailabilityInactive:
		return true
	}
	return false
}
