// Package dispatch orchestrates assignment: candidate selection, offer
// issuance, accept/reject race resolution and batching.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/fanout"
)

// Engine is the dispatch orchestrator.
type Engine struct {
	tasks            taskRepository
	couriers         courierRepository
	offers           offerRepository
	machine          taskMachine
	geofences        geofenceStore
	presence         presencePort
	routing          routingGateway
	events           eventSink
	acceptWindow     time.Duration
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewEngine creates a dispatch engine.
func NewEngine(tasks taskRepository, couriers courierRepository, offers offerRepository,
	machine taskMachine, geofences geofenceStore, presence presencePort,
	routing routingGateway, events eventSink,
	acceptWindow, timeout time.Duration, logger logx.Logger) *Engine {

	if acceptWindow <= 0 {
		acceptWindow = 60 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Engine{
		tasks:            tasks,
		couriers:         couriers,
		offers:           offers,
		machine:          machine,
		geofences:        geofences,
		presence:         presence,
		routing:          routing,
		events:           events,
		acceptWindow:     acceptWindow,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.operationTimeout)
}

// SelectOptions narrows candidate selection.
type SelectOptions struct {
	GeofenceEnabled bool
	NameFilter      string
}

// SelectCandidates returns approved, unblocked couriers matching the name
// filter, annotated with their live (or last persisted) location and a
// travel distance to the task's first pickup. With geofencing enabled,
// couriers outside the merchant's service area, or with no usable location,
// are excluded rather than erroring.
func (e *Engine) SelectCandidates(ctx context.Context, taskID string, opts SelectOptions) ([]domain.Candidate, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}

	couriers, err := e.couriers.ListCandidates(ctx, opts.NameFilter)
	if err != nil {
		return nil, err
	}

	var fence geo.Polygon
	if opts.GeofenceEnabled && geofenceApplies(t.Mode) {
		fence, err = e.geofences.ServiceArea(ctx, t.MerchantID)
		if err != nil {
			return nil, err
		}
	}

	var pickup *geo.Point
	if len(t.Pickups) > 0 {
		pickup = &t.Pickups[0].Location
	}

	out := make([]domain.Candidate, 0, len(couriers))
	for _, c := range couriers {
		loc := e.resolveLocation(&c)
		if len(fence) > 0 {
			if loc == nil || !geo.Contains(*loc, fence) {
				continue
			}
		}

		cand := domain.Candidate{Courier: c, Location: loc}
		// inactive couriers keep a zero distance: they cannot accept, so
		// the routing call is skipped for them
		if pickup != nil && loc != nil && c.Availability != domain.AvailabilityInactive {
			if res, err := e.routing.Distance(ctx, *loc, *pickup); err == nil {
				cand.DistanceKM = res.DistanceKM
			} else {
				e.logger.Warn("candidate distance lookup failed",
					logx.String("courier_id", c.ID),
					logx.Any("err", err),
				)
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

// geofenceApplies reports whether a delivery mode is bound to the merchant's
// service area. Pick-and-drop runs point to point with no merchant site.
func geofenceApplies(m domain.DeliveryMode) bool {
	return m != domain.ModePickAndDrop
}

func (e *Engine) resolveLocation(c *domain.Courier) *geo.Point {
	if pt, ok := e.presence.Location(c.ID); ok {
		return &pt
	}
	return c.LastLocation
}

// Assign offers a task to a courier: creates the pending offer, bumps the
// courier's pending counter and notifies them.
func (e *Engine) Assign(ctx context.Context, taskID, courierID string) (*domain.Offer, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	if t.Status != domain.TaskUnassigned {
		return nil, apperr.ErrConflict
	}

	c, err := e.couriers.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: courier %s", apperr.ErrNotFound, courierID)
	}

	offer := &domain.Offer{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		CourierID: courierID,
		Status:    domain.OfferPending,
		CreatedAt: e.now(),
		ExpiresIn: e.acceptWindow,
	}
	if err := e.offers.Insert(ctx, offer); err != nil {
		return nil, err
	}
	if err := e.couriers.IncPending(ctx, courierID); err != nil {
		return nil, err
	}

	ec := taskEventContext(t)
	ec.CourierID = courierID
	ec.ExpiresIn = e.acceptWindow
	ec.Data["expires_in_seconds"] = int64(e.acceptWindow.Seconds())
	ec.Data["mode"] = string(t.Mode)
	e.events.Broadcast(ctx, domain.EventNewOrder, ec)

	e.logger.Info("offer issued",
		logx.String("event", "offer_issued"),
		logx.String("offer_id", offer.ID),
		logx.String("task_id", taskID),
		logx.String("courier_id", courierID),
		logx.Duration("expires_in", e.acceptWindow),
	)
	return offer, nil
}

// Batch consolidates several tasks onto one courier. All members must share
// the delivery mode and the exact first pickup location; the courier's
// pending counter is bumped once and a single consolidated offer goes out.
func (e *Engine) Batch(ctx context.Context, taskIDs []string, courierID string) (*domain.BatchTask, *domain.Offer, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if len(taskIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: empty batch", apperr.ErrInvalid)
	}

	members, err := e.tasks.ListByIDs(ctx, taskIDs)
	if err != nil {
		return nil, nil, err
	}
	if err := validateBatch(members); err != nil {
		return nil, nil, err
	}

	c, err := e.couriers.Get(ctx, courierID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, fmt.Errorf("%w: courier %s", apperr.ErrNotFound, courierID)
	}

	first := members[0]
	b := &domain.BatchTask{
		ID:        uuid.NewString(),
		TaskIDs:   taskIDs,
		CourierID: courierID,
		Mode:      first.Mode,
		Status:    domain.TaskUnassigned,
		Pickup:    first.Pickups[0],
		CreatedAt: e.now(),
	}
	for _, m := range members {
		b.Drops = append(b.Drops, m.Drops...)
	}
	if err := e.tasks.InsertBatch(ctx, b); err != nil {
		return nil, nil, err
	}

	offer := &domain.Offer{
		ID:        uuid.NewString(),
		TaskID:    b.ID,
		CourierID: courierID,
		Batch:     true,
		Status:    domain.OfferPending,
		CreatedAt: e.now(),
		ExpiresIn: e.acceptWindow,
	}
	if err := e.offers.Insert(ctx, offer); err != nil {
		return nil, nil, err
	}
	if err := e.couriers.IncPending(ctx, courierID); err != nil {
		return nil, nil, err
	}

	ec := batchEventContext(b, members)
	ec.ExpiresIn = e.acceptWindow
	e.events.Broadcast(ctx, domain.EventNewOrder, ec)

	e.logger.Info("batch offer issued",
		logx.String("event", "batch_offer_issued"),
		logx.String("batch_id", b.ID),
		logx.String("courier_id", courierID),
		logx.Int("tasks", len(taskIDs)),
	)
	return b, offer, nil
}

// validateBatch enforces same mode and byte-identical first pickup
// coordinates across every member.
func validateBatch(members []*domain.Task) error {
	first := members[0]
	if len(first.Pickups) == 0 {
		return fmt.Errorf("%w: task %s has no pickup", apperr.ErrInvalid, first.ID)
	}
	wantKey := pickupKey(first.Pickups[0].Location)
	for _, m := range members[1:] {
		if m.Mode != first.Mode {
			return fmt.Errorf("%w: mixed delivery modes", apperr.ErrInvalid)
		}
		if len(m.Pickups) == 0 || pickupKey(m.Pickups[0].Location) != wantKey {
			return fmt.Errorf("%w: divergent first pickup", apperr.ErrInvalid)
		}
	}
	return nil
}

// pickupKey serializes coordinates for exact-match comparison, no tolerance.
func pickupKey(p geo.Point) string {
	return fmt.Sprintf("%v,%v", p.Lat, p.Lng)
}

// AcceptOffer resolves the accept race: exactly one caller moves the offer
// out of pending, every other concurrent accept, reject or expiry observes
// "already resolved".
func (e *Engine) AcceptOffer(ctx context.Context, taskOrBatchID, courierID string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	offer, err := e.offers.GetPending(ctx, taskOrBatchID, courierID)
	if err != nil {
		return err
	}
	resuming := false
	if offer == nil {
		offer, err = e.resumableOffer(ctx, taskOrBatchID, courierID)
		if err != nil {
			return err
		}
		resuming = true
	}
	if e.presence.Availability(courierID) == domain.AvailabilityInactive {
		return fmt.Errorf("%w: agent must be online", apperr.ErrUnauthorized)
	}

	if !resuming {
		won, err := e.offers.Resolve(ctx, offer.ID, domain.OfferAccepted)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: already resolved", apperr.ErrNotFound)
		}
	}

	var ec fanout.EventContext
	if offer.Batch {
		b, err := e.machine.AcceptBatch(ctx, taskOrBatchID, courierID)
		if err != nil {
			return err
		}
		ec = fanout.EventContext{TaskID: b.ID, CourierID: courierID}
	} else {
		t, err := e.machine.Accept(ctx, taskOrBatchID, courierID)
		if err != nil {
			return err
		}
		ec = taskEventContext(t)
	}

	if _, err := e.couriers.DecPending(ctx, courierID); err != nil {
		return err
	}
	if err := e.couriers.SetAvailability(ctx, courierID, domain.AvailabilityBusy); err != nil {
		return err
	}
	e.presence.SetAvailability(courierID, domain.AvailabilityBusy)

	ec.CourierID = courierID
	e.events.Broadcast(ctx, domain.EventOrderAccepted, ec)

	e.logger.Info("offer accepted",
		logx.String("event", "offer_accepted"),
		logx.String("offer_id", offer.ID),
		logx.String("courier_id", courierID),
	)
	return nil
}

// resumableOffer recovers an accept that won the offer resolution but did not
// finish the assignment, e.g. the process died between the resolve and the
// task writes. The retry may pick the accepted offer back up only while the
// target is still unassigned; once the assignment landed the offer is spent.
func (e *Engine) resumableOffer(ctx context.Context, taskOrBatchID, courierID string) (*domain.Offer, error) {
	latest, err := e.offers.GetLatest(ctx, taskOrBatchID, courierID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Status != domain.OfferAccepted {
		return nil, fmt.Errorf("%w: notification not found", apperr.ErrNotFound)
	}

	unassigned, err := e.targetUnassigned(ctx, latest)
	if err != nil {
		return nil, err
	}
	if !unassigned {
		return nil, fmt.Errorf("%w: already resolved", apperr.ErrNotFound)
	}
	return latest, nil
}

func (e *Engine) targetUnassigned(ctx context.Context, o *domain.Offer) (bool, error) {
	if o.Batch {
		b, err := e.tasks.GetBatch(ctx, o.TaskID)
		if err != nil {
			return false, err
		}
		return b != nil && b.Status == domain.TaskUnassigned, nil
	}
	t, err := e.tasks.Get(ctx, o.TaskID)
	if err != nil {
		return false, err
	}
	return t != nil && t.Status == domain.TaskUnassigned, nil
}

// RejectOffer resolves an explicit rejection with the same single-winner
// discipline as accept.
func (e *Engine) RejectOffer(ctx context.Context, taskOrBatchID, courierID string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	offer, err := e.offers.GetPending(ctx, taskOrBatchID, courierID)
	if err != nil {
		return err
	}
	if offer == nil {
		return fmt.Errorf("%w: notification not found", apperr.ErrNotFound)
	}

	won, err := e.offers.Resolve(ctx, offer.ID, domain.OfferRejected)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: already resolved", apperr.ErrNotFound)
	}

	if _, err := e.couriers.DecPending(ctx, courierID); err != nil {
		return err
	}
	if err := e.couriers.IncCancelled(ctx, courierID); err != nil {
		return err
	}

	e.events.Broadcast(ctx, domain.EventOrderRejected, fanout.EventContext{
		TaskID:    taskOrBatchID,
		CourierID: courierID,
	})

	e.logger.Info("offer rejected",
		logx.String("event", "offer_rejected"),
		logx.String("offer_id", offer.ID),
		logx.String("courier_id", courierID),
	)
	return nil
}

// PendingOffer is one outstanding offer with its remaining acceptance time.
type PendingOffer struct {
	Offer     domain.Offer
	Remaining time.Duration
}

// PendingOffers returns a courier's outstanding offers with remaining time.
func (e *Engine) PendingOffers(ctx context.Context, courierID string) ([]PendingOffer, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	offers, err := e.offers.ListPendingByCourier(ctx, courierID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]PendingOffer, 0, len(offers))
	for _, o := range offers {
		out = append(out, PendingOffer{Offer: o, Remaining: o.Remaining(now)})
	}
	return out, nil
}

func taskEventContext(t *domain.Task) fanout.EventContext {
	courierID := ""
	if t.CourierID != nil {
		courierID = *t.CourierID
	}
	ec := fanout.EventContext{
		TaskID:     t.ID,
		OrderID:    t.OrderID,
		MerchantID: t.MerchantID,
		CustomerID: t.CustomerID,
		CourierID:  courierID,
		Data: map[string]any{
			"task_id":  t.ID,
			"order_id": t.OrderID,
		},
	}
	for _, p := range t.Pickups {
		ec.PickupAddresses = append(ec.PickupAddresses, p.Address)
	}
	for _, d := range t.Drops {
		ec.DropAddresses = append(ec.DropAddresses, d.Address)
	}
	return ec
}

func batchEventContext(b *domain.BatchTask, members []*domain.Task) fanout.EventContext {
	ec := fanout.EventContext{
		TaskID:    b.ID,
		CourierID: b.CourierID,
		Data: map[string]any{
			"batch_id": b.ID,
			"orders":   len(members),
		},
	}
	ec.PickupAddresses = append(ec.PickupAddresses, b.Pickup.Address)
	for _, d := range b.Drops {
		ec.DropAddresses = append(ec.DropAddresses, d.Address)
	}
	return ec
}
