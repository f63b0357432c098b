package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
)

// CourierRepo persists courier records and their load counters.
type CourierRepo struct {
	db *pgxpool.Pool
}

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo {
	return &CourierRepo{db: db}
}

const courierColumns = `
    id, name, phone, approved, blocked, availability,
    last_lat, last_lng, pending_orders, cancelled_orders, total_orders
`

func scanCourier(row interface{ Scan(...any) error }) (*domain.Courier, error) {
	var c domain.Courier
	var availability string
	var lat, lng *float64
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Approved, &c.Blocked, &availability,
		&lat, &lng, &c.PendingOrders, &c.CancelledOrders, &c.TotalOrders)
	if err != nil {
		return nil, err
	}
	c.Availability = domain.Availability(availability)
	if lat != nil && lng != nil {
		c.LastLocation = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return &c, nil
}

// Get loads a courier by id.
func (r *CourierRepo) Get(ctx context.Context, id string) (*domain.Courier, error) {
	row := r.db.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id)
	c, err := scanCourier(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %q: %w", id, err)
	}
	return c, nil
}

// ListCandidates returns approved, unblocked couriers whose name contains the
// filter (case-insensitive). An empty filter matches everyone.
func (r *CourierRepo) ListCandidates(ctx context.Context, nameFilter string) ([]domain.Courier, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+courierColumns+`
        FROM couriers
        WHERE approved = true AND blocked = false
          AND ($1 = '' OR name ILIKE '%' || $1 || '%')
        ORDER BY pending_orders ASC, id ASC
    `, nameFilter)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan courier: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// IncPending bumps the courier's pending-order counter.
func (r *CourierRepo) IncPending(ctx context.Context, id string) error {
	return r.bump(ctx, id, `pending_orders = pending_orders + 1`)
}

// DecPending decrements the pending counter only while it is positive, so
// concurrent resolutions of the same offer cannot double-decrement.
func (r *CourierRepo) DecPending(ctx context.Context, id string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET pending_orders = pending_orders - 1
        WHERE id = $1 AND pending_orders > 0
    `, id)
	if err != nil {
		return false, fmt.Errorf("dec pending of courier %q: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// IncCancelled bumps the courier's cancelled-order counter.
func (r *CourierRepo) IncCancelled(ctx context.Context, id string) error {
	return r.bump(ctx, id, `cancelled_orders = cancelled_orders + 1`)
}

// IncTotal bumps the courier's total-order counter.
func (r *CourierRepo) IncTotal(ctx context.Context, id string) error {
	return r.bump(ctx, id, `total_orders = total_orders + 1`)
}

func (r *CourierRepo) bump(ctx context.Context, id, setClause string) error {
	ct, err := r.db.Exec(ctx, `UPDATE couriers SET `+setClause+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update counters of courier %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %q not found", id)
	}
	return nil
}

// SetAvailability persists the courier's availability.
func (r *CourierRepo) SetAvailability(ctx context.Context, id string, a domain.Availability) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers SET availability = $2 WHERE id = $1
    `, id, string(a))
	if err != nil {
		return fmt.Errorf("set availability of courier %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %q not found", id)
	}
	return nil
}

// UpdateLastLocation persists the courier's last reported location so
// selection can fall back to it when no live presence entry exists.
func (r *CourierRepo) UpdateLastLocation(ctx context.Context, id string, pt geo.Point) error {
	_, err := r.db.Exec(ctx, `
        UPDATE couriers SET last_lat = $2, last_lng = $3 WHERE id = $1
    `, id, pt.Lat, pt.Lng)
	if err != nil {
		return fmt.Errorf("update location of courier %q: %w", id, err)
	}
	return nil
}
