package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// TaskRepo persists tasks, their stops and batches.
type TaskRepo struct {
	db *pgxpool.Pool
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{db: db}
}

// Insert stores a task and its stops in one transaction.
func (r *TaskRepo) Insert(ctx context.Context, t *domain.Task) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO tasks (id, order_id, merchant_id, customer_id, status, mode, schedule, distance_km, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, t.ID, t.OrderID, t.MerchantID, t.CustomerID, string(t.Status), string(t.Mode), string(t.Schedule), t.DistanceKM, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := insertStops(ctx, tx, t.ID, domain.StopPickup, t.Pickups); err != nil {
		return err
	}
	if err := insertStops(ctx, tx, t.ID, domain.StopDrop, t.Drops); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertStops(ctx context.Context, tx pgx.Tx, taskID string, kind domain.StopKind, stops []domain.Stop) error {
	for i, s := range stops {
		_, err := tx.Exec(ctx, `
            INSERT INTO stops (task_id, kind, idx, status, lat, lng, address, order_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, taskID, string(kind), i, string(s.Status), s.Location.Lat, s.Location.Lng, s.Address, s.OrderID)
		if err != nil {
			return fmt.Errorf("insert %s stop %d: %w", kind, i, err)
		}
	}
	return nil
}

// Get loads a task with its stops.
func (r *TaskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, order_id, merchant_id, customer_id, courier_id, batch_id,
               status, mode, schedule, distance_km, created_at
        FROM tasks
        WHERE id = $1
    `, id)

	var t domain.Task
	var status, mode, schedule string
	err := row.Scan(&t.ID, &t.OrderID, &t.MerchantID, &t.CustomerID, &t.CourierID, &t.BatchID,
		&status, &mode, &schedule, &t.DistanceKM, &t.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %q: %w", id, err)
	}
	t.Status = domain.TaskStatus(status)
	t.Mode = domain.DeliveryMode(mode)
	t.Schedule = domain.Schedule(schedule)

	if t.Pickups, err = r.stops(ctx, id, domain.StopPickup); err != nil {
		return nil, err
	}
	if t.Drops, err = r.stops(ctx, id, domain.StopDrop); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) stops(ctx context.Context, taskID string, kind domain.StopKind) ([]domain.Stop, error) {
	rows, err := r.db.Query(ctx, `
        SELECT status, lat, lng, address, order_id, started_at, completed_at
        FROM stops
        WHERE task_id = $1 AND kind = $2
        ORDER BY idx
    `, taskID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("stops for task %q: %w", taskID, err)
	}
	defer rows.Close()

	var out []domain.Stop
	for rows.Next() {
		s := domain.Stop{Kind: kind}
		var status string
		if err := rows.Scan(&status, &s.Location.Lat, &s.Location.Lng, &s.Address, &s.OrderID, &s.StartedAt, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.Status = domain.StopStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByIDs loads several tasks, preserving the requested order.
func (r *TaskRepo) ListByIDs(ctx context.Context, ids []string) ([]*domain.Task, error) {
	out := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("task %q not found", id)
		}
		out = append(out, t)
	}
	return out, nil
}

// AssignCourier moves an unassigned task to assigned and flips all pending
// stops to accepted. Returns false when the task was not unassigned, so a
// concurrent assign loses cleanly.
func (r *TaskRepo) AssignCourier(ctx context.Context, taskID, courierID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
        UPDATE tasks
        SET status = $1, courier_id = $2
        WHERE id = $3 AND status = $4
    `, string(domain.TaskAssigned), courierID, taskID, string(domain.TaskUnassigned))
	if err != nil {
		return false, fmt.Errorf("assign task %q: %w", taskID, err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
        UPDATE stops
        SET status = $1
        WHERE task_id = $2 AND status = $3
    `, string(domain.StopAccepted), taskID, string(domain.StopPending))
	if err != nil {
		return false, fmt.Errorf("accept stops for task %q: %w", taskID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// SetStopStatus advances one stop from an expected status. Returns false when
// the stop was not in the expected status (lost race or replayed event).
func (r *TaskRepo) SetStopStatus(ctx context.Context, taskID string, kind domain.StopKind, idx int,
	from, to domain.StopStatus, at time.Time) (bool, error) {

	col := "started_at"
	if to == domain.StopCompleted {
		col = "completed_at"
	}
	q := fmt.Sprintf(`
        UPDATE stops
        SET status = $1, %s = $2
        WHERE task_id = $3 AND kind = $4 AND idx = $5 AND status = $6
    `, col)

	ct, err := r.db.Exec(ctx, q, string(to), at, taskID, string(kind), idx, string(from))
	if err != nil {
		return false, fmt.Errorf("set stop status %s[%d] of task %q: %w", kind, idx, taskID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// StopStatus reads the current status of one stop.
func (r *TaskRepo) StopStatus(ctx context.Context, taskID string, kind domain.StopKind, idx int) (domain.StopStatus, error) {
	row := r.db.QueryRow(ctx, `
        SELECT status FROM stops
        WHERE task_id = $1 AND kind = $2 AND idx = $3
    `, taskID, string(kind), idx)

	var status string
	if err := row.Scan(&status); err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("stop status %s[%d] of task %q: %w", kind, idx, taskID, err)
	}
	return domain.StopStatus(status), nil
}

// AddDistance accumulates routing distance covered by the courier.
func (r *TaskRepo) AddDistance(ctx context.Context, taskID string, km float64) error {
	_, err := r.db.Exec(ctx, `
        UPDATE tasks SET distance_km = distance_km + $1 WHERE id = $2
    `, km, taskID)
	if err != nil {
		return fmt.Errorf("add distance to task %q: %w", taskID, err)
	}
	return nil
}

// MarkCompleted terminalizes a task once every drop stop is completed.
// Returns false when some drop is still open or the task already terminal.
func (r *TaskRepo) MarkCompleted(ctx context.Context, taskID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE tasks
        SET status = $1
        WHERE id = $2 AND status = $3
          AND NOT EXISTS (
              SELECT 1 FROM stops
              WHERE task_id = $2 AND kind = $4 AND status <> $5
          )
    `, string(domain.TaskCompleted), taskID, string(domain.TaskAssigned),
		string(domain.StopDrop), string(domain.StopCompleted))
	if err != nil {
		return false, fmt.Errorf("complete task %q: %w", taskID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// Cancel terminalizes a task and every non-terminal stop. Returns false when
// the task was already terminal.
func (r *TaskRepo) Cancel(ctx context.Context, taskID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
        UPDATE tasks
        SET status = $1
        WHERE id = $2 AND status NOT IN ($3, $4)
    `, string(domain.TaskCancelled), taskID, string(domain.TaskCompleted), string(domain.TaskCancelled))
	if err != nil {
		return false, fmt.Errorf("cancel task %q: %w", taskID, err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
        UPDATE stops
        SET status = $1
        WHERE task_id = $2 AND status NOT IN ($3, $4)
    `, string(domain.StopCancelled), taskID, string(domain.StopCompleted), string(domain.StopCancelled))
	if err != nil {
		return false, fmt.Errorf("cancel stops for task %q: %w", taskID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// CountActiveByCourier counts non-terminal tasks assigned to a courier.
func (r *TaskRepo) CountActiveByCourier(ctx context.Context, courierID string) (int, error) {
	row := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM tasks
        WHERE courier_id = $1 AND status = $2
    `, courierID, string(domain.TaskAssigned))

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active tasks of courier %q: %w", courierID, err)
	}
	return n, nil
}

// InsertBatch stores a batch record with its route stops and links the
// member tasks.
func (r *TaskRepo) InsertBatch(ctx context.Context, b *domain.BatchTask) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO batches (id, courier_id, mode, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, b.ID, b.CourierID, string(b.Mode), string(b.Status), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if err := insertBatchStops(ctx, tx, b.ID, domain.StopPickup, []domain.Stop{b.Pickup}); err != nil {
		return err
	}
	if err := insertBatchStops(ctx, tx, b.ID, domain.StopDrop, b.Drops); err != nil {
		return err
	}

	for _, taskID := range b.TaskIDs {
		ct, err := tx.Exec(ctx, `
            UPDATE tasks SET batch_id = $1 WHERE id = $2 AND batch_id IS NULL
        `, b.ID, taskID)
		if err != nil {
			return fmt.Errorf("link task %q to batch: %w", taskID, err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("task %q already batched", taskID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertBatchStops(ctx context.Context, tx pgx.Tx, batchID string, kind domain.StopKind, stops []domain.Stop) error {
	for i, s := range stops {
		_, err := tx.Exec(ctx, `
            INSERT INTO batch_stops (batch_id, kind, idx, status, lat, lng, address, order_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, batchID, string(kind), i, string(s.Status), s.Location.Lat, s.Location.Lng, s.Address, s.OrderID)
		if err != nil {
			return fmt.Errorf("insert batch %s stop %d: %w", kind, i, err)
		}
	}
	return nil
}

// SetBatchStatus updates the batch record status.
func (r *TaskRepo) SetBatchStatus(ctx context.Context, id string, to domain.TaskStatus) error {
	ct, err := r.db.Exec(ctx, `UPDATE batches SET status = $2 WHERE id = $1`, id, string(to))
	if err != nil {
		return fmt.Errorf("set batch %q status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("batch %q not found", id)
	}
	return nil
}

// SetBatchStopStatus advances one batch route stop from an expected status,
// with the same conditional-update discipline as SetStopStatus.
func (r *TaskRepo) SetBatchStopStatus(ctx context.Context, batchID string, kind domain.StopKind, idx int,
	from, to domain.StopStatus, at time.Time) (bool, error) {

	col := "started_at"
	if to == domain.StopCompleted {
		col = "completed_at"
	}
	q := fmt.Sprintf(`
        UPDATE batch_stops
        SET status = $1, %s = $2
        WHERE batch_id = $3 AND kind = $4 AND idx = $5 AND status = $6
    `, col)

	ct, err := r.db.Exec(ctx, q, string(to), at, batchID, string(kind), idx, string(from))
	if err != nil {
		return false, fmt.Errorf("set batch stop status %s[%d] of batch %q: %w", kind, idx, batchID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// BatchStopStatus reads the current status of one batch route stop.
func (r *TaskRepo) BatchStopStatus(ctx context.Context, batchID string, kind domain.StopKind, idx int) (domain.StopStatus, error) {
	row := r.db.QueryRow(ctx, `
        SELECT status FROM batch_stops
        WHERE batch_id = $1 AND kind = $2 AND idx = $3
    `, batchID, string(kind), idx)

	var status string
	if err := row.Scan(&status); err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("batch stop status %s[%d] of batch %q: %w", kind, idx, batchID, err)
	}
	return domain.StopStatus(status), nil
}

// GetBatch loads a batch with its route stops and member task ids.
func (r *TaskRepo) GetBatch(ctx context.Context, id string) (*domain.BatchTask, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, courier_id, mode, status, created_at
        FROM batches
        WHERE id = $1
    `, id)

	var b domain.BatchTask
	var mode, status string
	err := row.Scan(&b.ID, &b.CourierID, &mode, &status, &b.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch %q: %w", id, err)
	}
	b.Mode = domain.DeliveryMode(mode)
	b.Status = domain.TaskStatus(status)

	srows, err := r.db.Query(ctx, `
        SELECT kind, status, lat, lng, address, order_id, started_at, completed_at
        FROM batch_stops
        WHERE batch_id = $1
        ORDER BY kind DESC, idx
    `, id)
	if err != nil {
		return nil, fmt.Errorf("batch stops %q: %w", id, err)
	}
	defer srows.Close()
	for srows.Next() {
		var s domain.Stop
		var kind, stStatus string
		if err := srows.Scan(&kind, &stStatus, &s.Location.Lat, &s.Location.Lng,
			&s.Address, &s.OrderID, &s.StartedAt, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan batch stop: %w", err)
		}
		s.Kind = domain.StopKind(kind)
		s.Status = domain.StopStatus(stStatus)
		if s.Kind == domain.StopPickup {
			b.Pickup = s
		} else {
			b.Drops = append(b.Drops, s)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("batch stops %q: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM tasks WHERE batch_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("batch members %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return nil, fmt.Errorf("scan batch member: %w", err)
		}
		b.TaskIDs = append(b.TaskIDs, taskID)
	}
	return &b, rows.Err()
}
