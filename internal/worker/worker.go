// Package worker claims queued notification events and delivers them through
// the mail transport.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/audit"
	"github.com/lalithlochan/orderpulse/internal/db"
	"github.com/lalithlochan/orderpulse/internal/mailer"
	"github.com/lalithlochan/orderpulse/internal/metrics"
	"github.com/lalithlochan/orderpulse/internal/notify"
)

// EventStore is the event storage the worker drives. ClaimEvent must be a
// single atomic conditional write: exactly one of any number of concurrent
// claimers transitions the row from queued to processing.
type EventStore interface {
	QueuedEvents(ctx context.Context, channel string, limit int) ([]*db.NotificationEvent, error)
	ClaimEvent(ctx context.Context, id uuid.UUID) (bool, error)
	MarkEventSent(ctx context.Context, id uuid.UUID) error
	MarkEventFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// UserDirectory resolves user ids to email addresses.
type UserDirectory interface {
	UserEmail(ctx context.Context, userID string) (string, bool, error)
}

// TemplateResolver resolves and renders notification text.
type TemplateResolver interface {
	Resolve(ctx context.Context, triggerKey string, scopeID, languageID *string, variables map[string]any) (notify.Rendered, error)
}

// AuditLogger records delivery outcomes, fire-and-forget.
type AuditLogger interface {
	Log(ctx context.Context, action, targetType, targetID, contextLabel string, details map[string]any, category string)
}

// Worker processes queued notification events.
type Worker struct {
	events    EventStore
	users     UserDirectory
	templates TemplateResolver
	mail      mailer.Mailer
	audit     AuditLogger
	logger    *zap.Logger
}

func New(events EventStore, users UserDirectory, templates TemplateResolver, mail mailer.Mailer, auditLog AuditLogger, logger *zap.Logger) *Worker {
	return &Worker{
		events:    events,
		users:     users,
		templates: templates,
		mail:      mail,
		audit:     auditLog,
		logger:    logger,
	}
}

// Run claims and processes up to batchSize queued email events. Other
// channels are reserved for future transports and stay queued. Run may be
// invoked concurrently with itself across process instances; the claim is
// the only gate.
func (w *Worker) Run(ctx context.Context, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 10
	}

	events, err := w.events.QueuedEvents(ctx, db.ChannelEmail, batchSize)
	if err != nil {
		return fmt.Errorf("worker: load queued events: %w", err)
	}

	for _, event := range events {
		claimed, err := w.events.ClaimEvent(ctx, event.ID)
		if err != nil {
			w.logger.Error("failed to claim event",
				zap.Error(err),
				zap.String("event_id", event.ID.String()),
			)
			continue
		}
		if !claimed {
			// Another worker got there first.
			continue
		}

		w.process(ctx, event)
	}

	return nil
}

func (w *Worker) process(ctx context.Context, event *db.NotificationEvent) {
	recipient, err := w.resolveRecipient(ctx, event.Payload)
	if err != nil {
		w.fail(ctx, event, fmt.Errorf("resolve recipient: %w", err))
		return
	}

	scopeID := event.ScopeID
	if hint := payloadString(event.Payload, "sales_channel_id"); hint != "" {
		scopeID = &hint
	}
	var languageID *string
	if hint := payloadString(event.Payload, "language_id"); hint != "" {
		languageID = &hint
	}

	variables := make(map[string]any, len(event.Payload)+3)
	for key, value := range event.Payload {
		variables[key] = value
	}
	variables["event_key"] = event.EventKey
	variables["trigger_key"] = event.TriggerKey
	variables["external_order_id"] = event.ExternalOrderID

	rendered, err := w.templates.Resolve(ctx, event.TriggerKey, scopeID, languageID, variables)
	if err != nil {
		w.fail(ctx, event, fmt.Errorf("resolve template: %w", err))
		return
	}

	err = w.mail.Send(ctx, mailer.Message{
		Recipients: []string{recipient},
		Subject:    rendered.Subject,
		HTML:       rendered.HTML,
		Plain:      rendered.Plain,
		ScopeID:    scopeID,
	})
	if err != nil {
		w.fail(ctx, event, fmt.Errorf("send mail: %w", err))
		return
	}

	if err := w.events.MarkEventSent(ctx, event.ID); err != nil {
		w.logger.Error("failed to mark event sent",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
		return
	}

	metrics.RecordProcessed(db.StatusSent, event.TriggerKey)
	metrics.RecordDeliveryLatency(time.Since(event.CreatedAt))

	w.logger.Info("notification sent",
		zap.String("event_key", event.EventKey),
		zap.String("trigger_key", event.TriggerKey),
		zap.String("recipient", recipient),
	)

	w.audit.Log(ctx, audit.ActionNotificationSent, "notification_event", event.ID.String(),
		event.TriggerKey,
		map[string]any{"channel": event.Channel, "recipient": recipient},
		"notification",
	)
}

// fail records a terminal failure. Failed events are never re-queued; a
// later scan cycle has to produce a new event key to retry, which keeps
// persistent failures from turning into notification storms.
func (w *Worker) fail(ctx context.Context, event *db.NotificationEvent, cause error) {
	w.logger.Error("notification delivery failed",
		zap.Error(cause),
		zap.String("event_key", event.EventKey),
		zap.String("trigger_key", event.TriggerKey),
	)

	if err := w.events.MarkEventFailed(ctx, event.ID, cause.Error()); err != nil {
		w.logger.Error("failed to mark event failed",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
	}

	metrics.RecordProcessed(db.StatusFailed, event.TriggerKey)

	w.audit.Log(ctx, audit.ActionNotificationFailed, "notification_event", event.ID.String(),
		event.TriggerKey,
		map[string]any{"channel": event.Channel, "error": cause.Error()},
		"notification",
	)
}

// resolveRecipient walks the recipient priority chain: explicit recipient
// address, customer address, initiator address, then the email of a
// well-formed recipient user id.
func (w *Worker) resolveRecipient(ctx context.Context, payload map[string]any) (string, error) {
	for _, key := range []string{"recipient_email", "customer_email", "initiator_email"} {
		if addr := payloadString(payload, key); addr != "" {
			return addr, nil
		}
	}

	if userID := payloadString(payload, "recipient_user_id"); userID != "" {
		if _, err := uuid.Parse(userID); err == nil {
			email, found, err := w.users.UserEmail(ctx, userID)
			if err != nil {
				return "", fmt.Errorf("lookup user %s: %w", userID, err)
			}
			if found && email != "" {
				return email, nil
			}
		}
	}

	return "", fmt.Errorf("no recipient could be resolved")
}

func payloadString(payload map[string]any, key string) string {
	if value, ok := payload[key]; ok {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}
