package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/push"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/presence"
)

type stubPresence struct {
	tokens map[string][]string
	conns  map[string]presence.Conn
}

func (s *stubPresence) Tokens(userID string) []string { return s.tokens[userID] }

func (s *stubPresence) Connection(userID string) (presence.Conn, bool) {
	c, ok := s.conns[userID]
	return c, ok
}

type stubConn struct {
	events []string
	err    error
}

func (c *stubConn) Send(event string, _ any) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

type stubSender struct {
	outcome push.Outcome
	sent    []push.Message
}

func (s *stubSender) Send(_ context.Context, _ []string, msg push.Message) push.Outcome {
	s.sent = append(s.sent, msg)
	return s.outcome
}

type stubLogStore struct {
	entries []*domain.NotificationLogEntry
	err     error
}

func (s *stubLogStore) Insert(_ context.Context, e *domain.NotificationLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func newTestService(p *stubPresence, sender *stubSender, store *stubLogStore) *Service {
	svc := NewService(NewStaticSettings(), p, sender, store, logx.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDeliver_NoTokensIsSilentSkip(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{}}
	sender := &stubSender{outcome: push.Delivered}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	out := svc.Deliver(context.Background(), domain.Recipient{Kind: domain.RecipientCourier, UserID: "c1"},
		domain.EventNewOrder, Template{}, EventContext{})

	require.Equal(t, push.NoTokens, out)
	require.Empty(t, sender.sent)
	require.Empty(t, store.entries)
}

func TestDeliver_CourierLogCarriesOfferContext(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{"c1": {"tok"}}}
	sender := &stubSender{outcome: push.Delivered}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	ec := EventContext{
		TaskID:          "t1",
		OrderID:         "o1",
		PickupAddresses: []string{"1 Baker St"},
		DropAddresses:   []string{"2 Main St"},
		ExpiresIn:       60 * time.Second,
	}
	out := svc.Deliver(context.Background(), domain.Recipient{Kind: domain.RecipientCourier, UserID: "c1"},
		domain.EventNewOrder, Template{Title: "New order"}, ec)

	require.Equal(t, push.Delivered, out)
	require.Len(t, store.entries, 1)
	e := store.entries[0]
	require.Equal(t, domain.RecipientCourier, e.Recipient)
	require.Equal(t, []string{"1 Baker St"}, e.PickupAddresses)
	require.Equal(t, []string{"2 Main St"}, e.DropAddresses)
	require.Equal(t, 60*time.Second, e.ExpiresIn)
	require.NotEmpty(t, e.ID)
}

func TestDeliver_FlatLogForCustomer(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{"u1": {"tok"}}}
	sender := &stubSender{outcome: push.Delivered}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	ec := EventContext{PickupAddresses: []string{"addr"}, ExpiresIn: time.Minute}
	svc.Deliver(context.Background(), domain.Recipient{Kind: domain.RecipientCustomer, UserID: "u1"},
		domain.EventOrderAccepted, Template{}, ec)

	require.Len(t, store.entries, 1)
	require.Empty(t, store.entries[0].PickupAddresses)
	require.Zero(t, store.entries[0].ExpiresIn)
}

func TestDeliver_AllProvidersFailedSkipsLog(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{"c1": {"tok"}}}
	sender := &stubSender{outcome: push.AllProvidersFailed}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	out := svc.Deliver(context.Background(), domain.Recipient{Kind: domain.RecipientCourier, UserID: "c1"},
		domain.EventNewOrder, Template{}, EventContext{})

	require.Equal(t, push.AllProvidersFailed, out)
	require.Empty(t, store.entries)
}

func TestPushRealtime(t *testing.T) {
	t.Parallel()

	conn := &stubConn{}
	p := &stubPresence{conns: map[string]presence.Conn{"c1": conn}}
	svc := newTestService(p, &stubSender{}, &stubLogStore{})

	require.True(t, svc.PushRealtime("c1", domain.EventNewOrder, nil))
	require.Equal(t, []string{domain.EventNewOrder}, conn.events)

	// disconnected user is a silent no-op
	require.False(t, svc.PushRealtime("ghost", domain.EventNewOrder, nil))

	// failing connection is reported as not pushed
	bad := &stubConn{err: errors.New("broken pipe")}
	p.conns["c2"] = bad
	require.False(t, svc.PushRealtime("c2", domain.EventNewOrder, nil))
}

func TestResolveRecipients(t *testing.T) {
	t.Parallel()

	ec := EventContext{MerchantID: "m1", CustomerID: "u1", CourierID: "c1"}
	roles := []Role{
		{Kind: domain.RecipientAdmin}, {Kind: domain.RecipientMerchant},
		{Kind: domain.RecipientCustomer}, {Kind: domain.RecipientCourier},
		{Kind: domain.RecipientManager, ManagerRole: ManagerRoleOperations},
	}

	got := resolveRecipients(roles, ec)
	require.Len(t, got, 5)
	require.Equal(t, "m1", got[1].UserID)
	require.Equal(t, "u1", got[2].UserID)
	require.Equal(t, "c1", got[3].UserID)
	require.Equal(t, domain.RecipientManager, got[4].Kind)
	require.Equal(t, ManagerRoleOperations, got[4].ManagerRole)

	// recipients without a resolvable user are dropped
	got = resolveRecipients([]Role{{Kind: domain.RecipientCourier}}, EventContext{})
	require.Empty(t, got)
}

func TestBroadcast_ManagerInboxOnCancel(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{}}
	sender := &stubSender{outcome: push.Delivered}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	svc.Broadcast(context.Background(), domain.EventCancelledByAgent, EventContext{TaskID: "t1"})

	var manager *domain.NotificationLogEntry
	for _, e := range store.entries {
		if e.Recipient == domain.RecipientManager {
			manager = e
		}
	}
	require.NotNil(t, manager)
	require.Equal(t, ManagerRoleOperations, manager.UserID)
}

func TestBroadcast_UsesSettings(t *testing.T) {
	t.Parallel()

	p := &stubPresence{tokens: map[string][]string{"c1": {"tok"}}}
	sender := &stubSender{outcome: push.Delivered}
	store := &stubLogStore{}
	svc := newTestService(p, sender, store)

	svc.Broadcast(context.Background(), domain.EventNewOrder, EventContext{CourierID: "c1"})

	// newOrder routes to the courier only
	require.Len(t, sender.sent, 1)
	require.Equal(t, domain.EventNewOrder, sender.sent[0].Event)
}

func TestStaticSettings_UnknownEvent(t *testing.T) {
	t.Parallel()

	roles, tpl, err := NewStaticSettings().RolesFor(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, roles)
	require.Empty(t, tpl.Title)
}
