package fanout

import (
	"context"

	"service-dispatch/internal/domain"
)

// ManagerRoleOperations is the named manager role receiving escalation
// events in the default routing.
const ManagerRoleOperations = "operations_manager"

// StaticSettings is an in-process settings store with the default role
// routing per event. Deployments with a settings UI swap in their own
// SettingsStore implementation.
type StaticSettings struct {
	rules map[string]rule
}

type rule struct {
	roles []Role
	tpl   Template
}

func kinds(ks ...domain.RecipientKind) []Role {
	out := make([]Role, 0, len(ks))
	for _, k := range ks {
		out = append(out, Role{Kind: k})
	}
	return out
}

func manager(name string) Role {
	return Role{Kind: domain.RecipientManager, ManagerRole: name}
}

// NewStaticSettings creates the default event-to-role routing. Escalation
// events (reject, cancel) additionally route to the operations manager
// inbox.
func NewStaticSettings() *StaticSettings {
	all := kinds(
		domain.RecipientAdmin, domain.RecipientMerchant,
		domain.RecipientCustomer, domain.RecipientCourier,
	)

	return &StaticSettings{rules: map[string]rule{
		domain.EventNewOrder: {
			roles: kinds(domain.RecipientCourier),
			tpl:   Template{Title: "New order", Body: "A new delivery is waiting for you"},
		},
		domain.EventOrderAccepted: {
			roles: all,
			tpl:   Template{Title: "Order accepted", Body: "An agent accepted the delivery"},
		},
		domain.EventOrderRejected: {
			roles: append(kinds(domain.RecipientAdmin, domain.RecipientMerchant), manager(ManagerRoleOperations)),
			tpl:   Template{Title: "Order rejected", Body: "The agent rejected the delivery"},
		},
		domain.EventPickupStarted: {
			roles: kinds(domain.RecipientAdmin, domain.RecipientMerchant, domain.RecipientCustomer),
			tpl:   Template{Title: "Pickup started", Body: "The agent is heading to the pickup point"},
		},
		domain.EventReachedPickup: {
			roles: kinds(domain.RecipientAdmin, domain.RecipientMerchant),
			tpl:   Template{Title: "Agent at pickup", Body: "The agent reached the pickup point"},
		},
		domain.EventDeliveryStarted: {
			roles: kinds(domain.RecipientAdmin, domain.RecipientCustomer),
			tpl:   Template{Title: "Out for delivery", Body: "Your order is on the way"},
		},
		domain.EventReachedDelivery: {
			roles: kinds(domain.RecipientAdmin, domain.RecipientCustomer),
			tpl:   Template{Title: "Delivered", Body: "The agent reached the delivery point"},
		},
		domain.EventCancelledByAgent: {
			roles: append(all, manager(ManagerRoleOperations)),
			tpl:   Template{Title: "Order cancelled", Body: "The agent cancelled the delivery"},
		},
	}}
}

// RolesFor returns the configured roles and template for an event.
// Unknown events resolve to no recipients.
func (s *StaticSettings) RolesFor(_ context.Context, event string) ([]Role, Template, error) {
	r, ok := s.rules[event]
	if !ok {
		return nil, Template{}, nil
	}
	return r.roles, r.tpl, nil
}
