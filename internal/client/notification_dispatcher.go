package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/repository"
)

// defaultChannels are the delivery channels requested for every approval
// notification; the platform notification service decides what it can honor
// per recipient preference.
var defaultChannels = []string{"push", "email"}

// NotificationDispatcher implements the approval engine's notification sink:
// it records a notification row and publishes the event to NATS for the
// platform notification service to deliver.
//
// Subject convention: notifications.rehab.<event_type>
// Event types mirror repository.NotificationType.
//
// All operations are non-fatal. Failures are logged but never propagated, so
// a notification failure can never interrupt or roll back an approval
// transition.
type NotificationDispatcher struct {
	store *repository.NotificationRepository
	nc    *nats.Conn
	log   zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType   string         `json:"event_type"`
	RequestID   string         `json:"request_id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	RecipientID string         `json:"recipient_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Channels    []string       `json:"channels"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewNotificationDispatcher creates a dispatcher. nc may be nil, in which
// case events are stored but not published.
func NewNotificationDispatcher(store *repository.NotificationRepository, nc *nats.Conn, log zerolog.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{store: store, nc: nc, log: log}
}

// Notify records and publishes one notification. Fire-and-forget.
func (d *NotificationDispatcher) Notify(ctx context.Context, req *repository.ApprovalRequest, ntype repository.NotificationType, recipientID, title, message string) {
	if recipientID == "" {
		return
	}

	n := &repository.Notification{
		RequestID:   req.ID,
		Type:        ntype,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Channels:    defaultChannels,
	}
	if d.store != nil {
		if err := d.store.Create(ctx, n); err != nil {
			d.log.Warn().Err(err).
				Str("request_id", req.ID).
				Str("type", string(ntype)).
				Msg("notification: failed to store record")
		}
	}

	if d.nc == nil {
		return
	}

	event := &NotificationEvent{
		EventType:   string(ntype),
		RequestID:   req.ID,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Channels:    defaultChannels,
	}
	data, err := json.Marshal(event)
	if err != nil {
		d.log.Warn().Err(err).Str("type", string(ntype)).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.rehab.%s", ntype)
	if err := d.nc.Publish(subject, data); err != nil {
		d.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", req.ID).
			Msg("notification: failed to publish NATS event")
		return
	}

	d.log.Debug().
		Str("subject", subject).
		Str("request_id", req.ID).
		Str("recipient_id", recipientID).
		Msg("notification: event published")
}
