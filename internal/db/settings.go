package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// FindToggle looks up a toggle row for the exact (trigger, channel, scope)
// combination. scopeID nil selects the global default row.
func (r *Repository) FindToggle(ctx context.Context, triggerKey, channel string, scopeID *string) (NotificationToggle, bool, error) {
	query := `
		SELECT trigger_key, channel, sales_channel_id, enabled
		FROM notification_toggles
		WHERE trigger_key = $1 AND channel = $2 AND sales_channel_id IS NOT DISTINCT FROM $3
	`

	var toggle NotificationToggle
	err := r.db.Pool().QueryRow(ctx, query, triggerKey, channel, scopeID).Scan(
		&toggle.TriggerKey,
		&toggle.Channel,
		&toggle.SalesChannelID,
		&toggle.Enabled,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return NotificationToggle{}, false, nil
	}
	if err != nil {
		return NotificationToggle{}, false, fmt.Errorf("query notification toggle: %w", err)
	}

	return toggle, true, nil
}

// FindTemplate looks up a template row for the exact (trigger, scope,
// language) combination. Fallback across less specific rows is the
// resolver's job, not the store's.
func (r *Repository) FindTemplate(ctx context.Context, triggerKey string, scopeID, languageID *string) (NotificationTemplate, bool, error) {
	query := `
		SELECT trigger_key, sales_channel_id, language_id, subject, content_html, content_plain
		FROM notification_templates
		WHERE trigger_key = $1
		  AND sales_channel_id IS NOT DISTINCT FROM $2
		  AND language_id IS NOT DISTINCT FROM $3
	`

	var tmpl NotificationTemplate
	err := r.db.Pool().QueryRow(ctx, query, triggerKey, scopeID, languageID).Scan(
		&tmpl.TriggerKey,
		&tmpl.SalesChannelID,
		&tmpl.LanguageID,
		&tmpl.Subject,
		&tmpl.ContentHTML,
		&tmpl.ContentPlain,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return NotificationTemplate{}, false, nil
	}
	if err != nil {
		return NotificationTemplate{}, false, fmt.Errorf("query notification template: %w", err)
	}

	return tmpl, true, nil
}

// ActiveRules returns the active task assignment rules for a trigger, highest
// priority first.
func (r *Repository) ActiveRules(ctx context.Context, triggerKey string) ([]TaskAssignmentRule, error) {
	query := `
		SELECT trigger_key, active, priority, assignee_type, assignee_identifier, conditions
		FROM task_assignment_rules
		WHERE trigger_key = $1 AND active = TRUE
		ORDER BY priority DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, triggerKey)
	if err != nil {
		return nil, fmt.Errorf("query task assignment rules: %w", err)
	}
	defer rows.Close()

	var rules []TaskAssignmentRule
	for rows.Next() {
		var rule TaskAssignmentRule
		var conditions []byte
		err := rows.Scan(
			&rule.TriggerKey,
			&rule.Active,
			&rule.Priority,
			&rule.AssigneeType,
			&rule.AssigneeIdentifier,
			&conditions,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task assignment rule: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
				return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
			}
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return rules, nil
}
