package domain

// Event names emitted by the dispatch engine and the task state machine.
const (
	EventNewOrder         = "newOrder"
	EventOrderAccepted    = "agentOrderAccepted"
	EventOrderRejected    = "agentOrderRejected"
	EventPickupStarted    = "agentPickupStarted"
	EventReachedPickup    = "reachedPickupLocation"
	EventDeliveryStarted  = "agentDeliveryStarted"
	EventReachedDelivery  = "reachedDeliveryLocation"
	EventCancelledByAgent = "cancelCustomOrderByAgent"
)

// RecipientKind tags the kind of a notification recipient. Role resolution
// happens once per event; handlers switch on the tag instead of raw strings.
type RecipientKind string

// List of recipient kinds
const (
	RecipientAdmin    RecipientKind = "admin"
	RecipientMerchant RecipientKind = "merchant"
	RecipientCourier  RecipientKind = "driver"
	RecipientCustomer RecipientKind = "customer"
	RecipientManager  RecipientKind = "manager"
)

// Recipient identifies one party to notify about an event.
type Recipient struct {
	Kind RecipientKind
	// UserID is the concrete user to deliver to. Empty for broadcast kinds
	// (admin) where the settings store supplies the audience.
	UserID string
	// ManagerRole carries the named role when Kind is RecipientManager.
	ManagerRole string
}
