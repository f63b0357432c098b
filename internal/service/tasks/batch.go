package tasks

import (
	"context"
	"errors"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
)

// Batch operations replay each courier action once per underlying task.
// Replays are attempted independently: a failure on one member does not roll
// back the members already mutated, the errors are aggregated instead and
// the caller retries the whole batch. Every per-task transition is an
// idempotent no-op on retry, so the replay converges.

// AcceptBatch applies the accept to every member task.
func (s *Service) AcceptBatch(ctx context.Context, batchID, courierID string) (*domain.BatchTask, error) {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, taskID := range b.TaskIDs {
		if _, err := s.Accept(ctx, taskID, courierID); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := s.tasks.SetBatchStatus(ctx, batchID, domain.TaskAssigned); err != nil {
		return nil, err
	}
	if err := s.mirrorBatchStop(ctx, batchID, domain.StopPickup, 0, domain.StopAccepted); err != nil {
		return nil, err
	}
	for i := range b.Drops {
		if err := s.mirrorBatchStop(ctx, batchID, domain.StopDrop, i, domain.StopAccepted); err != nil {
			return nil, err
		}
	}
	b.Status = domain.TaskAssigned
	return b, nil
}

// StartBatchPickup replays the pickup start on every member task.
func (s *Service) StartBatchPickup(ctx context.Context, batchID, courierID string) error {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return err
	}

	var errs []error
	for _, taskID := range b.TaskIDs {
		if err := s.StartPickup(ctx, taskID, courierID, 0); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return s.mirrorBatchStop(ctx, batchID, domain.StopPickup, 0, domain.StopStarted)
}

// ReachBatchPickup checks the courier's distance against the shared pickup
// once, then force-completes the pickup of every member: the courier
// physically visits one stop on behalf of all orders sharing it.
func (s *Service) ReachBatchPickup(ctx context.Context, batchID, courierID string, at geo.Point) error {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return err
	}

	d := geo.HaversineKM(at, b.Pickup.Location)
	if d > s.pickupRadiusKM {
		return fmt.Errorf("%w: %.2f km from pickup", apperr.ErrOutOfRange, d)
	}

	var errs []error
	for _, taskID := range b.TaskIDs {
		if err := s.ReachPickup(ctx, taskID, courierID, 0, at, true); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return s.mirrorBatchStop(ctx, batchID, domain.StopPickup, 0, domain.StopCompleted)
}

// StartBatchDrop starts the drop leg of the idx-th member task.
func (s *Service) StartBatchDrop(ctx context.Context, batchID, courierID string, idx int) error {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(b.TaskIDs) {
		return apperr.ErrNotFound
	}
	if err := s.StartDelivery(ctx, b.TaskIDs[idx], courierID, 0); err != nil {
		return err
	}
	return s.mirrorBatchStop(ctx, batchID, domain.StopDrop, idx, domain.StopStarted)
}

// ReachBatchDrop completes the drop leg of the idx-th member task and, when
// every member is terminal, terminalizes the batch record itself.
func (s *Service) ReachBatchDrop(ctx context.Context, batchID, courierID string, idx int, at geo.Point) error {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(b.TaskIDs) {
		return apperr.ErrNotFound
	}

	if err := s.ReachDelivery(ctx, b.TaskIDs[idx], courierID, 0, at); err != nil {
		return err
	}
	if err := s.mirrorBatchStop(ctx, batchID, domain.StopDrop, idx, domain.StopCompleted); err != nil {
		return err
	}
	return s.settleBatch(ctx, b)
}

// CancelBatch replays the cancel on every member task.
func (s *Service) CancelBatch(ctx context.Context, batchID, courierID string) error {
	b, err := s.ownedBatch(ctx, batchID, courierID)
	if err != nil {
		return err
	}

	var errs []error
	for _, taskID := range b.TaskIDs {
		if err := s.Cancel(ctx, taskID, courierID); err != nil && !errors.Is(err, apperr.ErrConflict) {
			errs = append(errs, fmt.Errorf("task %s: %w", taskID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := s.mirrorBatchStop(ctx, batchID, domain.StopPickup, 0, domain.StopCancelled); err != nil {
		return err
	}
	for i := range b.Drops {
		if err := s.mirrorBatchStop(ctx, batchID, domain.StopDrop, i, domain.StopCancelled); err != nil {
			return err
		}
	}
	return s.tasks.SetBatchStatus(ctx, batchID, domain.TaskCancelled)
}

func (s *Service) ownedBatch(ctx context.Context, batchID, courierID string) (*domain.BatchTask, error) {
	b, err := s.tasks.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.ErrNotFound
	}
	if b.CourierID != courierID {
		return nil, apperr.ErrUnauthorized
	}
	return b, nil
}

// mirrorBatchStop converges the batch's own route stop to the status its
// member stops just reached. The member transitions are the guard; the
// mirror tolerates replays and skipped intermediate states.
func (s *Service) mirrorBatchStop(ctx context.Context, batchID string, kind domain.StopKind, idx int, to domain.StopStatus) error {
	var from []domain.StopStatus
	switch to {
	case domain.StopAccepted:
		from = []domain.StopStatus{domain.StopPending}
	case domain.StopStarted:
		from = []domain.StopStatus{domain.StopAccepted, domain.StopPending}
	case domain.StopCompleted, domain.StopCancelled:
		from = []domain.StopStatus{domain.StopStarted, domain.StopAccepted, domain.StopPending}
	default:
		return apperr.ErrInvalid
	}

	now := s.now()
	for _, f := range from {
		ok, err := s.tasks.SetBatchStopStatus(ctx, batchID, kind, idx, f, to, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	current, err := s.tasks.BatchStopStatus(ctx, batchID, kind, idx)
	if err != nil {
		return err
	}
	if current == "" {
		return apperr.ErrNotFound
	}
	if current == to || replayed(current, to) {
		return nil
	}
	if to == domain.StopCancelled && current == domain.StopCompleted {
		// completed legs stay completed when the batch cancels
		return nil
	}
	return fmt.Errorf("%w: batch %s stop is %s", apperr.ErrConflict, kind, current)
}

// settleBatch marks the batch completed once every member task is terminal.
func (s *Service) settleBatch(ctx context.Context, b *domain.BatchTask) error {
	for _, taskID := range b.TaskIDs {
		t, err := s.tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil || t.Active() {
			return nil
		}
	}
	return s.tasks.SetBatchStatus(ctx, b.ID, domain.TaskCompleted)
}
