package fanout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/push"
	"service-dispatch/internal/logx"
)

// EventContext carries everything the fanout needs to address one task event:
// the parties involved and the address snapshots for courier log entries.
type EventContext struct {
	TaskID          string
	OrderID         string
	MerchantID      string
	CustomerID      string
	CourierID       string
	PickupAddresses []string
	DropAddresses   []string
	ExpiresIn       time.Duration
	Data            map[string]any
}

// Service resolves recipients for an event and delivers to each over the
// realtime channel with push-notification fallback, logging every delivery.
type Service struct {
	settings SettingsStore
	presence presencePort
	sender   pushPort
	logStore logStore
	logger   logx.Logger
	now      func() time.Time
}

// NewService creates a notification fanout service.
func NewService(settings SettingsStore, p presencePort, sender pushPort, store logStore, logger logx.Logger) *Service {
	return &Service{
		settings: settings,
		presence: p,
		sender:   sender,
		logStore: store,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Broadcast resolves the configured roles for the event once, maps each role
// to its concrete recipient from the event context, and delivers to each.
// Delivery problems degrade silently: they are logged, never returned.
func (s *Service) Broadcast(ctx context.Context, event string, ec EventContext) {
	roles, tpl, err := s.settings.RolesFor(ctx, event)
	if err != nil {
		s.logger.Error("notification settings lookup failed",
			logx.String("event", event),
			logx.Any("err", err),
		)
		return
	}

	for _, r := range resolveRecipients(roles, ec) {
		s.deliver(ctx, r, event, tpl, ec)
	}
}

// resolveRecipients turns configured roles into concrete recipients once per
// event, instead of re-branching on role strings in every handler.
func resolveRecipients(roles []Role, ec EventContext) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(roles))
	for _, role := range roles {
		r := domain.Recipient{Kind: role.Kind, ManagerRole: role.ManagerRole}
		switch role.Kind {
		case domain.RecipientMerchant:
			r.UserID = ec.MerchantID
		case domain.RecipientCustomer:
			r.UserID = ec.CustomerID
		case domain.RecipientCourier:
			r.UserID = ec.CourierID
		case domain.RecipientAdmin, domain.RecipientManager:
			// admin/manager inboxes are keyed by role, not by user
		}
		if r.Kind != domain.RecipientAdmin && r.Kind != domain.RecipientManager && r.UserID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) deliver(ctx context.Context, r domain.Recipient, event string, tpl Template, ec EventContext) {
	// realtime first; push notification is the fallback channel
	pushed := s.PushRealtime(r.UserID, event, ec.Data)

	outcome := s.Deliver(ctx, r, event, tpl, ec)
	if outcome == push.AllProvidersFailed && !pushed {
		s.logger.Error("recipient unreachable on all channels",
			logx.String("event", event),
			logx.String("recipient", string(r.Kind)),
			logx.String("user_id", r.UserID),
		)
	}
}

// Deliver sends the push notification for one recipient and persists a log
// entry scoped to the recipient's role. Missing tokens are a silent skip.
// Role-keyed recipients (admin, manager) have no push target; they get the
// log entry only, which backs their role inbox.
func (s *Service) Deliver(ctx context.Context, r domain.Recipient, event string, tpl Template, ec EventContext) push.Outcome {
	outcome := push.NoTokens
	if r.UserID != "" {
		tokens := s.presence.Tokens(r.UserID)
		if len(tokens) == 0 {
			s.logger.Debug("no push tokens, skipping",
				logx.String("event", event),
				logx.String("user_id", r.UserID),
			)
			return push.NoTokens
		}

		outcome = s.sender.Send(ctx, tokens, push.Message{
			Event: event,
			Title: tpl.Title,
			Body:  tpl.Body,
			Data:  ec.Data,
		})
		if outcome != push.Delivered {
			return outcome
		}
	}

	entry := &domain.NotificationLogEntry{
		ID:        uuid.NewString(),
		Event:     event,
		TaskID:    ec.TaskID,
		OrderID:   ec.OrderID,
		Recipient: r.Kind,
		UserID:    r.UserID,
		Title:     tpl.Title,
		Body:      tpl.Body,
		CreatedAt: s.now(),
	}
	if r.Kind == domain.RecipientManager {
		// manager inbox entries are keyed by the named role
		entry.UserID = r.ManagerRole
	}
	if r.Kind == domain.RecipientCourier {
		// courier log carries the richer offer context
		entry.PickupAddresses = ec.PickupAddresses
		entry.DropAddresses = ec.DropAddresses
		entry.ExpiresIn = ec.ExpiresIn
	}
	if err := s.logStore.Insert(ctx, entry); err != nil {
		s.logger.Error("notification log insert failed",
			logx.String("event", event),
			logx.Any("err", err),
		)
	}
	return outcome
}

// PushRealtime delivers over the user's live connection if there is one.
// Disconnected users are a silent no-op; push fallback covers them.
func (s *Service) PushRealtime(userID string, event string, data map[string]any) bool {
	if userID == "" {
		return false
	}
	conn, ok := s.presence.Connection(userID)
	if !ok {
		return false
	}
	if err := conn.Send(event, data); err != nil {
		s.logger.Warn("realtime push failed",
			logx.String("event", event),
			logx.String("user_id", userID),
			logx.Any("err", err),
		)
		return false
	}
	return true
}
