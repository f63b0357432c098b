package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/service/fanout"
)

type stubOffers struct {
	expired    []domain.Offer
	listErr    error
	resolved   map[string]domain.OfferStatus
	loseRace   map[string]bool
	resolveErr map[string]error
}

func (s *stubOffers) ListExpired(_ context.Context, _ time.Time) ([]domain.Offer, error) {
	return s.expired, s.listErr
}

func (s *stubOffers) Resolve(_ context.Context, id string, to domain.OfferStatus) (bool, error) {
	if err := s.resolveErr[id]; err != nil {
		return false, err
	}
	if s.loseRace[id] {
		return false, nil
	}
	if s.resolved == nil {
		s.resolved = map[string]domain.OfferStatus{}
	}
	s.resolved[id] = to
	return true, nil
}

type stubCouriers struct {
	decPending   []string
	incCancelled []string
}

func (s *stubCouriers) DecPending(_ context.Context, id string) (bool, error) {
	s.decPending = append(s.decPending, id)
	return true, nil
}

func (s *stubCouriers) IncCancelled(_ context.Context, id string) error {
	s.incCancelled = append(s.incCancelled, id)
	return nil
}

type stubEvents struct {
	events []string
	ctxs   []fanout.EventContext
}

func (s *stubEvents) Broadcast(_ context.Context, event string, ec fanout.EventContext) {
	s.events = append(s.events, event)
	s.ctxs = append(s.ctxs, ec)
}

func newTestWatcher(offers *stubOffers, couriers *stubCouriers, events *stubEvents) *Watcher {
	w := NewWatcher(offers, couriers, events, metrics.NewOffersExpiredTotal(),
		5*time.Second, 3*time.Second, logx.Nop())
	w.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestSweepExpired_RejectsAndBooks(t *testing.T) {
	t.Parallel()

	offers := &stubOffers{expired: []domain.Offer{
		{ID: "o1", TaskID: "t1", CourierID: "c1", Status: domain.OfferPending},
		{ID: "o2", TaskID: "t2", CourierID: "c2", Status: domain.OfferPending},
	}}
	couriers := &stubCouriers{}
	events := &stubEvents{}
	w := newTestWatcher(offers, couriers, events)

	swept, err := w.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, swept)

	require.Equal(t, domain.OfferRejected, offers.resolved["o1"])
	require.Equal(t, domain.OfferRejected, offers.resolved["o2"])
	require.Equal(t, []string{"c1", "c2"}, couriers.decPending)
	require.Equal(t, []string{"c1", "c2"}, couriers.incCancelled)
	require.Equal(t, []string{domain.EventOrderRejected, domain.EventOrderRejected}, events.events)
	require.Equal(t, "t1", events.ctxs[0].TaskID)
}

func TestSweepExpired_LostRaceSkipsBookkeeping(t *testing.T) {
	t.Parallel()

	offers := &stubOffers{
		expired:  []domain.Offer{{ID: "o1", TaskID: "t1", CourierID: "c1", Status: domain.OfferPending}},
		loseRace: map[string]bool{"o1": true},
	}
	couriers := &stubCouriers{}
	events := &stubEvents{}
	w := newTestWatcher(offers, couriers, events)

	swept, err := w.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Zero(t, swept)
	require.Empty(t, couriers.decPending)
	require.Empty(t, couriers.incCancelled)
	require.Empty(t, events.events)
}

func TestSweepExpired_ResolveErrorContinues(t *testing.T) {
	t.Parallel()

	offers := &stubOffers{
		expired: []domain.Offer{
			{ID: "o1", TaskID: "t1", CourierID: "c1", Status: domain.OfferPending},
			{ID: "o2", TaskID: "t2", CourierID: "c2", Status: domain.OfferPending},
		},
		resolveErr: map[string]error{"o1": errors.New("db down")},
	}
	couriers := &stubCouriers{}
	events := &stubEvents{}
	w := newTestWatcher(offers, couriers, events)

	swept, err := w.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, []string{"c2"}, couriers.decPending)
}

func TestSweepExpired_ListError(t *testing.T) {
	t.Parallel()

	offers := &stubOffers{listErr: errors.New("db down")}
	w := newTestWatcher(offers, &stubCouriers{}, &stubEvents{})

	_, err := w.SweepExpired(context.Background())
	require.Error(t, err)
}
