package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// OfferRepo persists assignment offers. A partial unique index on
// (task_id, courier_id) WHERE status = 'pending' enforces the single
// outstanding offer per pair.
type OfferRepo struct {
	db *pgxpool.Pool
}

// NewOfferRepo creates a new OfferRepo.
func NewOfferRepo(db *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{db: db}
}

// Insert stores a new pending offer.
func (r *OfferRepo) Insert(ctx context.Context, o *domain.Offer) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO offers (id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, o.ID, o.TaskID, o.CourierID, o.Batch, string(o.Status), o.CreatedAt, int64(o.ExpiresIn.Seconds()))
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// Get loads an offer by id.
func (r *OfferRepo) Get(ctx context.Context, id string) (*domain.Offer, error) {
	return r.one(ctx, `
        SELECT id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds
        FROM offers WHERE id = $1
    `, id)
}

// GetPending loads the pending offer of one (task, courier) pair, if any.
func (r *OfferRepo) GetPending(ctx context.Context, taskID, courierID string) (*domain.Offer, error) {
	return r.one(ctx, `
        SELECT id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds
        FROM offers
        WHERE task_id = $1 AND courier_id = $2 AND status = $3
    `, taskID, courierID, string(domain.OfferPending))
}

// GetLatest loads the most recent offer of one (task, courier) pair in any
// status. Accept retries use it to recover an assignment that resolved the
// offer but did not finish the follow-up writes.
func (r *OfferRepo) GetLatest(ctx context.Context, taskID, courierID string) (*domain.Offer, error) {
	return r.one(ctx, `
        SELECT id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds
        FROM offers
        WHERE task_id = $1 AND courier_id = $2
        ORDER BY created_at DESC
        LIMIT 1
    `, taskID, courierID)
}

func (r *OfferRepo) one(ctx context.Context, q string, args ...any) (*domain.Offer, error) {
	row := r.db.QueryRow(ctx, q, args...)

	var o domain.Offer
	var status string
	var expiresSec int64
	err := row.Scan(&o.ID, &o.TaskID, &o.CourierID, &o.Batch, &status, &o.CreatedAt, &expiresSec)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	o.Status = domain.OfferStatus(status)
	o.ExpiresIn = time.Duration(expiresSec) * time.Second
	return &o, nil
}

// Resolve moves an offer out of pending exactly once. The single conditional
// update is what decides the accept/reject/expiry race: the caller that sees
// true owns the follow-up bookkeeping, everyone else lost.
func (r *OfferRepo) Resolve(ctx context.Context, id string, to domain.OfferStatus) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE offers
        SET status = $1, resolved_at = now()
        WHERE id = $2 AND status = $3
    `, string(to), id, string(domain.OfferPending))
	if err != nil {
		return false, fmt.Errorf("resolve offer %q: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListPendingByCourier returns a courier's outstanding offers, oldest first.
func (r *OfferRepo) ListPendingByCourier(ctx context.Context, courierID string) ([]domain.Offer, error) {
	return r.list(ctx, `
        SELECT id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds
        FROM offers
        WHERE courier_id = $1 AND status = $2
        ORDER BY created_at
    `, courierID, string(domain.OfferPending))
}

// ListExpired returns pending offers whose acceptance window elapsed at now.
func (r *OfferRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	return r.list(ctx, `
        SELECT id, task_id, courier_id, is_batch, status, created_at, expires_in_seconds
        FROM offers
        WHERE status = $1
          AND created_at + make_interval(secs => expires_in_seconds) < $2
        ORDER BY created_at
    `, string(domain.OfferPending), now)
}

func (r *OfferRepo) list(ctx context.Context, q string, args ...any) ([]domain.Offer, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		var o domain.Offer
		var status string
		var expiresSec int64
		if err := rows.Scan(&o.ID, &o.TaskID, &o.CourierID, &o.Batch, &status, &o.CreatedAt, &expiresSec); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		o.Status = domain.OfferStatus(status)
		o.ExpiresIn = time.Duration(expiresSec) * time.Second
		out = append(out, o)
	}
	return out, rows.Err()
}
