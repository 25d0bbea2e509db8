package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrDuplicateEvent is returned when an insert hits the unique constraint on
// event_key. Dispatchers treat it as an idempotent no-op, not a failure.
var ErrDuplicateEvent = errors.New("notification event already exists")

const uniqueViolation = "23505"

// CreateEvent inserts a new notification event. The event_key unique
// constraint is the real dedup guarantee under concurrent dispatchers; any
// existence pre-check above this call is best effort only.
func (r *Repository) CreateEvent(ctx context.Context, event *NotificationEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO notification_events (
			id, event_key, trigger_key, channel, external_order_id,
			source_system, scope_id, payload, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool().QueryRow(
		ctx,
		query,
		event.ID,
		event.EventKey,
		event.TriggerKey,
		event.Channel,
		event.ExternalOrderID,
		event.SourceSystem,
		event.ScopeID,
		payload,
		event.Status,
	).Scan(&event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEvent
		}
		r.logger.Error("failed to create notification event",
			zap.Error(err),
			zap.String("event_key", event.EventKey),
		)
		return fmt.Errorf("insert notification event: %w", err)
	}

	r.logger.Info("notification event queued",
		zap.String("event_key", event.EventKey),
		zap.String("trigger_key", event.TriggerKey),
		zap.String("channel", event.Channel),
	)

	return nil
}

// EventExists reports whether a row with the given dedup key is present.
func (r *Repository) EventExists(ctx context.Context, eventKey string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM notification_events WHERE event_key = $1)",
		eventKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event existence: %w", err)
	}
	return exists, nil
}

// QueuedEvents retrieves up to limit queued events for one channel, oldest
// first.
func (r *Repository) QueuedEvents(ctx context.Context, channel string, limit int) ([]*NotificationEvent, error) {
	query := `
		SELECT
			id, event_key, trigger_key, channel, external_order_id,
			source_system, scope_id, payload, status, error_message,
			created_at, updated_at
		FROM notification_events
		WHERE status = $1 AND channel = $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, StatusQueued, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query queued events: %w", err)
	}
	defer rows.Close()

	var events []*NotificationEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

// ClaimEvent atomically transitions one event from queued to processing.
// Exactly one of any number of concurrent claimers sees true; everyone else
// sees zero affected rows. This conditional update is the only mutual
// exclusion mechanism in the engine and must not be split into a
// read-then-write pair.
func (r *Repository) ClaimEvent(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE notification_events
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, StatusProcessing, id, StatusQueued)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkEventSent records a successful delivery.
func (r *Repository) MarkEventSent(ctx context.Context, id uuid.UUID) error {
	return r.setEventStatus(ctx, id, StatusSent, nil)
}

// MarkEventFailed records a terminal delivery failure. Failed events are
// never re-queued; a later scan cycle has to produce a new event key.
func (r *Repository) MarkEventFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setEventStatus(ctx, id, StatusFailed, &reason)
}

func (r *Repository) setEventStatus(ctx context.Context, id uuid.UUID, status string, errorMsg *string) error {
	query := `
		UPDATE notification_events
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, status, errorMsg, id)
	if err != nil {
		r.logger.Error("failed to update event status",
			zap.Error(err),
			zap.String("event_id", id.String()),
			zap.String("status", status),
		)
		return fmt.Errorf("update event status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification event not found: %s", id)
	}

	return nil
}

func scanEvent(row pgx.Row) (*NotificationEvent, error) {
	var event NotificationEvent
	var payload []byte

	err := row.Scan(
		&event.ID,
		&event.EventKey,
		&event.TriggerKey,
		&event.Channel,
		&event.ExternalOrderID,
		&event.SourceSystem,
		&event.ScopeID,
		&payload,
		&event.Status,
		&event.ErrorMessage,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan notification event: %w", err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
	}

	return &event, nil
}
