package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
)

// NotificationStore reads and updates stored notification records.
type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*repository.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// NotificationService exposes a user's approval notification inbox.
type NotificationService struct {
	store NotificationStore
	log   zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, log zerolog.Logger) *NotificationService {
	return &NotificationService{store: store, log: log}
}

// ListNotifications returns a user's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error) {
	if userID == "" {
		return nil, apperr.InvalidInput("user_id", "user id is required")
	}
	return s.store.ListForRecipient(ctx, userID, unreadOnly)
}

// MarkNotificationRead flags a notification as read.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return apperr.InvalidInput("notification_id", "notification id is required")
	}
	return s.store.MarkRead(ctx, id)
}
