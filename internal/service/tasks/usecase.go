package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/fanout"
)

// Service drives the per-task and per-stop state machine: guarded,
// idempotent transitions triggered by courier actions.
type Service struct {
	tasks            taskRepository
	couriers         courierRepository
	offers           offerRepository
	routing          routingGateway
	events           eventSink
	presence         availabilitySink
	pickupRadiusKM   float64
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates the task state machine service.
func NewService(tasks taskRepository, couriers courierRepository, offers offerRepository,
	routing routingGateway, events eventSink, presence availabilitySink,
	pickupRadiusKM float64, timeout time.Duration, logger logx.Logger) *Service {

	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if pickupRadiusKM <= 0 {
		pickupRadiusKM = 0.5
	}
	return &Service{
		tasks:            tasks,
		couriers:         couriers,
		offers:           offers,
		routing:          routing,
		events:           events,
		presence:         presence,
		pickupRadiusKM:   pickupRadiusKM,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// OrderInfo is what the order-confirmation collaborator supplies for a new task.
type OrderInfo struct {
	OrderID    string
	MerchantID string
	CustomerID string
	Mode       domain.DeliveryMode
	Schedule   domain.Schedule
	Pickups    []domain.Stop
	Drops      []domain.Stop
}

// CreateFromOrder creates an unassigned task for one confirmed order.
func (s *Service) CreateFromOrder(ctx context.Context, o OrderInfo) (*domain.Task, error) {
	if strings.TrimSpace(o.OrderID) == "" || !o.Mode.Valid() {
		return nil, apperr.ErrInvalid
	}
	if len(o.Pickups) == 0 || len(o.Drops) == 0 {
		return nil, apperr.ErrInvalid
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t := &domain.Task{
		ID:         uuid.NewString(),
		OrderID:    o.OrderID,
		MerchantID: o.MerchantID,
		CustomerID: o.CustomerID,
		Status:     domain.TaskUnassigned,
		Mode:       o.Mode,
		Schedule:   o.Schedule,
		Pickups:    initStops(o.Pickups, domain.StopPickup, o.OrderID),
		Drops:      initStops(o.Drops, domain.StopDrop, o.OrderID),
		CreatedAt:  s.now(),
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		logx.String("event", "task_created"),
		logx.String("task_id", t.ID),
		logx.String("order_id", t.OrderID),
		logx.String("mode", string(t.Mode)),
	)
	return t, nil
}

func initStops(in []domain.Stop, kind domain.StopKind, orderID string) []domain.Stop {
	out := make([]domain.Stop, len(in))
	for i, st := range in {
		st.Kind = kind
		st.Status = domain.StopPending
		if st.OrderID == "" {
			st.OrderID = orderID
		}
		out[i] = st
	}
	return out
}

// Accept applies the task-level accept: assigns the courier and flips every
// stop to accepted. Re-invocation after the courier already holds the task
// is an idempotent success, so offer-resolution retries stay safe.
func (s *Service) Accept(ctx context.Context, taskID, courierID string) (*domain.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.tasks.AssignCourier(ctx, taskID, courierID)
	if err != nil {
		return nil, err
	}
	if !ok {
		t, err := s.tasks.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, apperr.ErrNotFound
		}
		if t.CourierID != nil && *t.CourierID == courierID && t.Status == domain.TaskAssigned {
			return t, nil
		}
		return nil, apperr.ErrConflict
	}
	return s.tasks.Get(ctx, taskID)
}

// loadOwned loads the task and authorizes the acting courier.
func (s *Service) loadOwned(ctx context.Context, taskID, courierID string) (*domain.Task, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	if t.CourierID == nil || *t.CourierID != courierID {
		return nil, apperr.ErrUnauthorized
	}
	return t, nil
}

// StartPickup marks one pickup stop started. Replaying against a stop that
// already started is a success without re-mutation.
func (s *Service) StartPickup(ctx context.Context, taskID, courierID string, idx int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.loadOwned(ctx, taskID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(t.Pickups) {
		return apperr.ErrNotFound
	}

	err = s.advanceStop(ctx, taskID, domain.StopPickup, idx, domain.StopStarted)
	if err != nil {
		return err
	}
	s.events.Broadcast(ctx, domain.EventPickupStarted, s.eventContext(t))
	return nil
}

// ReachPickup completes one pickup stop. The courier must be within the
// configured radius of the stop, unless force is set by a batch-wide
// completion where one physical stop covers every order.
func (s *Service) ReachPickup(ctx context.Context, taskID, courierID string, idx int, at geo.Point, force bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.loadOwned(ctx, taskID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(t.Pickups) {
		return apperr.ErrNotFound
	}

	if !force {
		d := geo.HaversineKM(at, t.Pickups[idx].Location)
		if d > s.pickupRadiusKM {
			return fmt.Errorf("%w: %.2f km from pickup", apperr.ErrOutOfRange, d)
		}
	}

	err = s.completeStop(ctx, taskID, domain.StopPickup, idx, force)
	if err != nil {
		return err
	}
	s.events.Broadcast(ctx, domain.EventReachedPickup, s.eventContext(t))
	return nil
}

// StartDelivery marks one drop stop started.
func (s *Service) StartDelivery(ctx context.Context, taskID, courierID string, idx int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.loadOwned(ctx, taskID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(t.Drops) {
		return apperr.ErrNotFound
	}

	err = s.advanceStop(ctx, taskID, domain.StopDrop, idx, domain.StopStarted)
	if err != nil {
		return err
	}
	s.events.Broadcast(ctx, domain.EventDeliveryStarted, s.eventContext(t))
	return nil
}

// ReachDelivery completes one drop stop, accumulates the courier's covered
// distance from the routing collaborator, and completes the task once every
// drop is done.
func (s *Service) ReachDelivery(ctx context.Context, taskID, courierID string, idx int, at geo.Point) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.loadOwned(ctx, taskID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(t.Drops) {
		return apperr.ErrNotFound
	}

	leg, err := s.routing.Distance(ctx, at, t.Drops[idx].Location)
	if err != nil {
		// routing failure aborts this operation, it must not half-apply
		return fmt.Errorf("%w: distance lookup: %v", apperr.ErrUpstream, err)
	}

	if err := s.advanceStop(ctx, taskID, domain.StopDrop, idx, domain.StopCompleted); err != nil {
		return err
	}
	if err := s.tasks.AddDistance(ctx, taskID, leg.DistanceKM); err != nil {
		return err
	}

	done, err := s.tasks.MarkCompleted(ctx, taskID)
	if err != nil {
		return err
	}
	if done {
		if err := s.couriers.IncTotal(ctx, courierID); err != nil {
			return err
		}
		if err := s.refreshAvailability(ctx, courierID); err != nil {
			return err
		}
		s.logger.Info("task completed",
			logx.String("event", "task_completed"),
			logx.String("task_id", taskID),
			logx.String("courier_id", courierID),
			logx.Float64("distance_km", t.DistanceKM+leg.DistanceKM),
		)
	}
	s.events.Broadcast(ctx, domain.EventReachedDelivery, s.eventContext(t))
	return nil
}

// Cancel terminalizes the task, its stops and any pending offer, then
// releases the courier.
func (s *Service) Cancel(ctx context.Context, taskID, courierID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return apperr.ErrNotFound
	}
	if t.Status.Terminal() {
		return apperr.ErrConflict
	}
	if t.CourierID != nil && *t.CourierID != courierID {
		return apperr.ErrUnauthorized
	}

	ok, err := s.tasks.Cancel(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrConflict
	}

	if offer, err := s.offers.GetPending(ctx, taskID, courierID); err != nil {
		return err
	} else if offer != nil {
		won, err := s.offers.Resolve(ctx, offer.ID, domain.OfferCancelled)
		if err != nil {
			return err
		}
		if won {
			if _, err := s.couriers.DecPending(ctx, courierID); err != nil {
				return err
			}
		}
	}

	if err := s.couriers.IncCancelled(ctx, courierID); err != nil {
		return err
	}
	if err := s.refreshAvailability(ctx, courierID); err != nil {
		return err
	}

	s.events.Broadcast(ctx, domain.EventCancelledByAgent, s.eventContext(t))
	return nil
}

// advanceStop applies one guarded transition. A replay against a stop that
// already holds (or passed) the target status succeeds without mutating.
func (s *Service) advanceStop(ctx context.Context, taskID string, kind domain.StopKind, idx int, to domain.StopStatus) error {
	var from []domain.StopStatus
	switch to {
	case domain.StopStarted:
		from = []domain.StopStatus{domain.StopAccepted, domain.StopPending}
	case domain.StopCompleted:
		from = []domain.StopStatus{domain.StopStarted}
	default:
		return apperr.ErrInvalid
	}
	return s.transitionStop(ctx, taskID, kind, idx, from, to)
}

// completeStop completes one stop. A forced completion may leapfrog the
// started state: a batch-wide pickup covers member stops the courier never
// individually started.
func (s *Service) completeStop(ctx context.Context, taskID string, kind domain.StopKind, idx int, force bool) error {
	from := []domain.StopStatus{domain.StopStarted}
	if force {
		from = append(from, domain.StopAccepted, domain.StopPending)
	}
	return s.transitionStop(ctx, taskID, kind, idx, from, domain.StopCompleted)
}

func (s *Service) transitionStop(ctx context.Context, taskID string, kind domain.StopKind, idx int, from []domain.StopStatus, to domain.StopStatus) error {
	now := s.now()
	for _, f := range from {
		ok, err := s.tasks.SetStopStatus(ctx, taskID, kind, idx, f, to, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	current, err := s.tasks.StopStatus(ctx, taskID, kind, idx)
	if err != nil {
		return err
	}
	if current == "" {
		return apperr.ErrNotFound
	}
	if replayed(current, to) {
		return nil
	}
	return fmt.Errorf("%w: %s stop is %s", apperr.ErrConflict, kind, current)
}

// replayed reports whether the stop already holds or passed the target
// status, which makes the triggering event a no-op retry.
func replayed(current, target domain.StopStatus) bool {
	if current == domain.StopCancelled {
		return false
	}
	switch target {
	case domain.StopStarted:
		return current == domain.StopStarted || current == domain.StopCompleted
	case domain.StopCompleted:
		return current == domain.StopCompleted
	}
	return false
}

// refreshAvailability flips the courier to free when no active tasks remain,
// busy otherwise, in both the durable record and the presence directory.
func (s *Service) refreshAvailability(ctx context.Context, courierID string) error {
	active, err := s.tasks.CountActiveByCourier(ctx, courierID)
	if err != nil {
		return err
	}
	a := domain.AvailabilityFree
	if active > 0 {
		a = domain.AvailabilityBusy
	}
	if err := s.couriers.SetAvailability(ctx, courierID, a); err != nil {
		return err
	}
	s.presence.SetAvailability(courierID, a)
	return nil
}

func (s *Service) eventContext(t *domain.Task) fanout.EventContext {
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
			"status":   string(t.Status),
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
