package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// NotificationLogRepo persists the per-recipient notification audit log.
type NotificationLogRepo struct {
	db *pgxpool.Pool
}

// NewNotificationLogRepo creates a new NotificationLogRepo.
func NewNotificationLogRepo(db *pgxpool.Pool) *NotificationLogRepo {
	return &NotificationLogRepo{db: db}
}

// Insert stores one log entry.
func (r *NotificationLogRepo) Insert(ctx context.Context, e *domain.NotificationLogEntry) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO notification_log
            (id, event, task_id, order_id, recipient, user_id, title, body,
             pickup_addresses, drop_addresses, expires_in_seconds, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, e.ID, e.Event, e.TaskID, e.OrderID, string(e.Recipient), e.UserID, e.Title, e.Body,
		e.PickupAddresses, e.DropAddresses, int64(e.ExpiresIn.Seconds()), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// ListByUser returns a user's notification inbox, newest first.
func (r *NotificationLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.NotificationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, event, task_id, order_id, recipient, user_id, title, body,
               pickup_addresses, drop_addresses, expires_in_seconds, created_at
        FROM notification_log
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications of %q: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.NotificationLogEntry
	for rows.Next() {
		var e domain.NotificationLogEntry
		var recipient string
		var expiresSec int64
		err := rows.Scan(&e.ID, &e.Event, &e.TaskID, &e.OrderID, &recipient, &e.UserID,
			&e.Title, &e.Body, &e.PickupAddresses, &e.DropAddresses, &expiresSec, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		e.Recipient = domain.RecipientKind(recipient)
		e.ExpiresIn = time.Duration(expiresSec) * time.Second
		out = append(out, e)
	}
	return out, rows.Err()
}
