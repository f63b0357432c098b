package domain

import "time"

// NotificationLogEntry is a durable record of a delivered (or attempted)
// notification to one recipient, used for audit and role-scoped inboxes.
type NotificationLogEntry struct {
	ID        string
	Event     string
	TaskID    string
	OrderID   string
	Recipient RecipientKind
	UserID    string
	Title     string
	Body      string
	// Courier entries carry address snapshots and the acceptance window;
	// other roles get a flat log.
	PickupAddresses []string
	DropAddresses   []string
	ExpiresIn       time.Duration
	CreatedAt       time.Time
}
