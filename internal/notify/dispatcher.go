package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/catalog"
	"github.com/lalithlochan/orderpulse/internal/db"
	"github.com/lalithlochan/orderpulse/internal/metrics"
)

// EventStore persists notification events. CreateEvent must return
// db.ErrDuplicateEvent when the event key already exists; that constraint is
// the real dedup guarantee, EventExists is a pre-check only.
type EventStore interface {
	EventExists(ctx context.Context, eventKey string) (bool, error)
	CreateEvent(ctx context.Context, event *db.NotificationEvent) error
}

// RuleStore supplies active task assignment rules for payload annotation.
type RuleStore interface {
	ActiveRules(ctx context.Context, triggerKey string) ([]db.TaskAssignmentRule, error)
}

// DedupeCache is an optional seen-before check in front of storage.
type DedupeCache interface {
	Seen(ctx context.Context, eventKey string) bool
	Mark(ctx context.Context, eventKey string)
}

// FeedPublisher announces queued events downstream, fire-and-forget.
type FeedPublisher interface {
	Publish(ctx context.Context, event *db.NotificationEvent) error
}

// Event is a business event offered to the dispatcher. The caller constructs
// EventKey so that logically identical events collapse to the same key.
type Event struct {
	EventKey        string
	TriggerKey      string
	Channel         string
	ExternalOrderID string
	SourceSystem    string
	ScopeID         *string
	Payload         map[string]any
}

// Dispatcher is the idempotent enqueue gate every notification-producing code
// path passes through.
type Dispatcher struct {
	events  EventStore
	toggles *ToggleResolver
	rules   RuleStore
	cache   DedupeCache
	feed    FeedPublisher
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. rules, cache and feed may be nil.
func NewDispatcher(events EventStore, toggles *ToggleResolver, rules RuleStore, cache DedupeCache, feed FeedPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		events:  events,
		toggles: toggles,
		rules:   rules,
		cache:   cache,
		feed:    feed,
		logger:  logger,
	}
}

// Dispatch enqueues the event unless the toggle blocks it or an event with
// the same key already exists. Returns true iff a new row was written.
// Toggle-off and duplicate-key outcomes are silent no-ops, not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (bool, error) {
	if event.EventKey == "" {
		return false, fmt.Errorf("dispatch: empty event key")
	}
	if !catalog.ValidTrigger(event.TriggerKey) {
		return false, fmt.Errorf("dispatch: unknown trigger key %q", event.TriggerKey)
	}
	if !catalog.ValidChannel(event.Channel) {
		return false, fmt.Errorf("dispatch: unknown channel %q", event.Channel)
	}

	enabled, err := d.toggles.IsEnabled(ctx, event.TriggerKey, event.Channel, event.ScopeID)
	if err != nil {
		return false, fmt.Errorf("dispatch: resolve toggle: %w", err)
	}
	if !enabled {
		metrics.RecordToggleBlocked(event.TriggerKey, event.Channel)
		d.logger.Debug("dispatch blocked by toggle",
			zap.String("event_key", event.EventKey),
			zap.String("trigger_key", event.TriggerKey),
			zap.String("channel", event.Channel),
		)
		return false, nil
	}

	if d.cache != nil && d.cache.Seen(ctx, event.EventKey) {
		metrics.RecordDeduplicated(event.TriggerKey, event.Channel)
		return false, nil
	}

	exists, err := d.events.EventExists(ctx, event.EventKey)
	if err != nil {
		return false, fmt.Errorf("dispatch: existence check: %w", err)
	}
	if exists {
		metrics.RecordDeduplicated(event.TriggerKey, event.Channel)
		return false, nil
	}

	payload := d.annotatePayload(ctx, event)

	record := &db.NotificationEvent{
		EventKey:        event.EventKey,
		TriggerKey:      event.TriggerKey,
		Channel:         event.Channel,
		ExternalOrderID: event.ExternalOrderID,
		SourceSystem:    event.SourceSystem,
		ScopeID:         event.ScopeID,
		Payload:         payload,
		Status:          db.StatusQueued,
	}

	if err := d.events.CreateEvent(ctx, record); err != nil {
		// Two dispatchers racing on the same key: the storage constraint
		// decides, the loser treats it as a no-op.
		if errors.Is(err, db.ErrDuplicateEvent) {
			metrics.RecordDeduplicated(event.TriggerKey, event.Channel)
			return false, nil
		}
		return false, fmt.Errorf("dispatch: create event: %w", err)
	}

	if d.cache != nil {
		d.cache.Mark(ctx, event.EventKey)
	}

	metrics.RecordDispatched(event.TriggerKey, event.Channel)

	if d.feed != nil {
		if err := d.feed.Publish(ctx, record); err != nil {
			d.logger.Warn("dispatch feed publish failed",
				zap.Error(err),
				zap.String("event_key", event.EventKey),
			)
		}
	}

	return true, nil
}

// annotatePayload copies the payload and stamps the suggested owner from the
// highest-priority matching task assignment rule. Rules never gate dispatch;
// a rule lookup failure just leaves the payload unannotated.
func (d *Dispatcher) annotatePayload(ctx context.Context, event Event) map[string]any {
	payload := make(map[string]any, len(event.Payload)+2)
	for key, value := range event.Payload {
		payload[key] = value
	}

	if d.rules == nil {
		return payload
	}

	rules, err := d.rules.ActiveRules(ctx, event.TriggerKey)
	if err != nil {
		d.logger.Warn("task assignment rule lookup failed",
			zap.Error(err),
			zap.String("trigger_key", event.TriggerKey),
		)
		return payload
	}

	for _, rule := range rules {
		if ruleMatches(rule, payload) {
			payload["assignee_type"] = rule.AssigneeType
			payload["assignee"] = rule.AssigneeIdentifier
			break
		}
	}

	return payload
}

func ruleMatches(rule db.TaskAssignmentRule, payload map[string]any) bool {
	for key, want := range rule.Conditions {
		got, ok := payload[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
