package db

import (
	"time"

	"github.com/google/uuid"
)

// NotificationEvent is a queued outbound notification. At most one row ever
// exists per EventKey; the unique constraint on event_key is the real
// guarantee, any pre-check is an optimization.
type NotificationEvent struct {
	ID              uuid.UUID      `json:"id"`
	EventKey        string         `json:"event_key"`
	TriggerKey      string         `json:"trigger_key"`
	Channel         string         `json:"channel"`
	ExternalOrderID string         `json:"external_order_id,omitempty"`
	SourceSystem    string         `json:"source_system,omitempty"`
	ScopeID         *string        `json:"scope_id,omitempty"`
	Payload         map[string]any `json:"payload"`
	Status          string         `json:"status"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Status constants
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
)

// Channel constants
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)

// NotificationToggle decides whether a (trigger, channel) pair may dispatch.
// SalesChannelID nil means the global default row.
type NotificationToggle struct {
	TriggerKey     string  `json:"trigger_key"`
	Channel        string  `json:"channel"`
	SalesChannelID *string `json:"sales_channel_id,omitempty"`
	Enabled        bool    `json:"enabled"`
}

// NotificationTemplate holds subject/body text for a trigger. Rows with nil
// SalesChannelID/LanguageID act as fallbacks during resolution.
type NotificationTemplate struct {
	TriggerKey     string  `json:"trigger_key"`
	SalesChannelID *string `json:"sales_channel_id,omitempty"`
	LanguageID     *string `json:"language_id,omitempty"`
	Subject        string  `json:"subject"`
	ContentHTML    string  `json:"content_html"`
	ContentPlain   string  `json:"content_plain"`
}

// TaskAssignmentRule annotates dispatched payloads with a suggested owner.
// Rules never gate dispatch.
type TaskAssignmentRule struct {
	TriggerKey         string         `json:"trigger_key"`
	Active             bool           `json:"active"`
	Priority           int            `json:"priority"`
	AssigneeType       string         `json:"assignee_type"`
	AssigneeIdentifier string         `json:"assignee_identifier"`
	Conditions         map[string]any `json:"conditions,omitempty"`
}

// Order is owned by order-management storage; the engine only reads it.
type Order struct {
	ID              uuid.UUID  `json:"id"`
	OrderNumber     string     `json:"order_number"`
	SalesChannelID  *string    `json:"sales_channel_id,omitempty"`
	ExternalOrderID *string    `json:"external_order_id,omitempty"`
	SourceSystem    string     `json:"source_system,omitempty"`
	OrderDate       time.Time  `json:"order_date"`
	PaymentDate     *time.Time `json:"payment_date,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Cancelled       bool       `json:"cancelled"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	LanguageID      *string    `json:"language_id,omitempty"`
}

// Position is a single order line with its shipping expectations.
type Position struct {
	ID                     uuid.UUID  `json:"id"`
	OrderNumber            string     `json:"order_number"`
	ExternalOrderID        string     `json:"external_order_id,omitempty"`
	SourceSystem           string     `json:"source_system,omitempty"`
	SalesChannelID         *string    `json:"sales_channel_id,omitempty"`
	ProductLabel           string     `json:"product_label,omitempty"`
	CustomerEmail          string     `json:"customer_email,omitempty"`
	CalculatedDeliveryDate *time.Time `json:"calculated_delivery_date,omitempty"`
	ShippingDate           *time.Time `json:"shipping_date,omitempty"`
}

// Package groups positions under one shipment. DeliveryDate is the only field
// the engine writes, and only ever forward.
type Package struct {
	ID              uuid.UUID  `json:"id"`
	ExternalOrderID string     `json:"external_order_id"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
	TrackingNumbers []string   `json:"tracking_numbers,omitempty"`
}

// AuditEntry records an engine action such as a worker delivery outcome.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Context    string         `json:"context,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Category   string         `json:"category,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
