package domain

import "time"

// Offer is an outstanding assignment offer of a task (or batch) to one
// courier. For a given (task, courier) pair at most one offer is pending at
// a time, and an offer leaves the pending status exactly once.
type Offer struct {
	ID        string
	TaskID    string
	CourierID string
	Batch     bool
	Status    OfferStatus
	CreatedAt time.Time
	ExpiresIn time.Duration
}

// ExpiresAt returns the end of the acceptance window.
func (o *Offer) ExpiresAt() time.Time {
	return o.CreatedAt.Add(o.ExpiresIn)
}

// Remaining returns the time left in the acceptance window, clamped at zero.
func (o *Offer) Remaining(now time.Time) time.Duration {
	left := o.ExpiresAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
