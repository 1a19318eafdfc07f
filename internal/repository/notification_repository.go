package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/database"
)

// NotificationRepository stores approval notification records. Delivery
// bookkeeping (is_sent / is_read) is updated by the platform notification
// consumer.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO approval_notifications
		    (request_id, type, recipient_id, title, message, channels,
		     is_read, is_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.RequestID,
		n.Type,
		n.RecipientID,
		n.Title,
		n.Message,
		n.Channels,
		n.IsRead,
		n.IsSent,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create notification")
	}
	return nil
}

// ListForRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, request_id, type, recipient_id, title, message, channels,
		       is_read, is_sent, created_at
		FROM approval_notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, recipientID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(
			&n.ID, &n.RequestID, &n.Type, &n.RecipientID, &n.Title,
			&n.Message, &n.Channels, &n.IsRead, &n.IsSent, &n.CreatedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan notification")
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `
		UPDATE approval_notifications
		SET is_read = TRUE
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("notification", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to mark notification read")
	}
	return nil
}
