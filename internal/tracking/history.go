// Package tracking turns raw carrier histories into consistent delivery-date
// facts at the package and order level.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/carrier"
	"github.com/lalithlochan/orderpulse/internal/metrics"
)

// Canonical tracking statuses.
const (
	StatusDelivered      = "delivered"
	StatusOutForDelivery = "out_for_delivery"
	StatusInTransit      = "in_transit"
	StatusPreTransit     = "pre_transit"
	StatusUnknown        = "unknown"
)

// Event is a normalized tracking event. Status is canonical; Timestamp keeps
// the carrier's ISO-8601 string.
type Event struct {
	Status    string `json:"status"`
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
}

// Result is the uniform outcome of a history fetch. An unsupported carrier is
// a normal ok=false result, not an exceptional one; adapter failures are
// converted into the same shape and never escape as errors.
type Result struct {
	OK             bool    `json:"ok"`
	Carrier        string  `json:"carrier"`
	TrackingNumber string  `json:"tracking_number"`
	Events         []Event `json:"events,omitempty"`
	ErrorCode      string  `json:"error_code,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// HistoryService selects the adapter for a requested carrier and normalizes
// its events.
type HistoryService struct {
	adapters []carrier.Adapter
	logger   *zap.Logger
}

func NewHistoryService(logger *zap.Logger, adapters ...carrier.Adapter) *HistoryService {
	return &HistoryService{adapters: adapters, logger: logger}
}

// FetchHistory fetches and normalizes the history for one tracking number,
// sorted by timestamp descending (most recent first).
func (s *HistoryService) FetchHistory(ctx context.Context, carrierName, trackingNumber string) Result {
	var adapter carrier.Adapter
	for _, candidate := range s.adapters {
		if candidate.SupportsCarrier(carrierName) {
			adapter = candidate
			break
		}
	}
	if adapter == nil {
		metrics.RecordCarrierFetch(carrierName, carrier.CodeNotSupported)
		return Result{
			OK:             false,
			Carrier:        carrierName,
			TrackingNumber: trackingNumber,
			ErrorCode:      carrier.CodeNotSupported,
			Message:        fmt.Sprintf("no adapter supports carrier %q", carrierName),
		}
	}

	raw, err := adapter.FetchHistory(ctx, trackingNumber)
	if err != nil {
		code := carrier.CodeProviderError
		message := err.Error()
		var provErr *carrier.ProviderError
		if errors.As(err, &provErr) {
			code = provErr.Code
			message = provErr.Message
		}

		metrics.RecordCarrierFetch(adapter.Name(), code)
		s.logger.Warn("carrier history fetch failed",
			zap.String("carrier", adapter.Name()),
			zap.String("tracking_number", trackingNumber),
			zap.String("code", code),
			zap.String("message", message),
		)

		return Result{
			OK:             false,
			Carrier:        adapter.Name(),
			TrackingNumber: trackingNumber,
			ErrorCode:      code,
			Message:        message,
		}
	}

	events := make([]Event, 0, len(raw))
	for _, ev := range raw {
		events = append(events, Event{
			Status:    NormalizeStatus(ev.Status),
			Label:     ev.Label,
			Timestamp: ev.Timestamp,
			Location:  ev.Location,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		ti, errI := ParseTimestamp(events[i].Timestamp)
		tj, errJ := ParseTimestamp(events[j].Timestamp)
		if errI != nil || errJ != nil {
			return events[i].Timestamp > events[j].Timestamp
		}
		return ti.After(tj)
	})

	metrics.RecordCarrierFetch(adapter.Name(), "ok")

	return Result{
		OK:             true,
		Carrier:        adapter.Name(),
		TrackingNumber: trackingNumber,
		Events:         events,
	}
}

// statusKeywords maps canonical statuses to bilingual keyword lists matched
// case-insensitively as substrings. Order matters: delivered wins over the
// transit groups.
var statusKeywords = []struct {
	status   string
	keywords []string
}{
	{StatusDelivered, []string{
		"zugestellt", "delivered", "ausgeliefert", "delivery completed",
		"zustellung erfolgreich", "completed", "empfangen",
	}},
	{StatusOutForDelivery, []string{
		"out for delivery", "in zustellung", "zustellfahrzeug",
	}},
	{StatusInTransit, []string{
		"in transit", "transit", "unterwegs", "sortiert", "transport",
		"paketzentrum", "depot",
	}},
	{StatusPreTransit, []string{
		"pre-transit", "angekündigt", "label created", "elektronisch",
		"announced", "order data", "daten übermittelt",
	}},
}

// NormalizeStatus maps a raw carrier status into the canonical set. An
// unrecognized string normalizes to unknown.
func NormalizeStatus(raw string) string {
	lowered := strings.ToLower(raw)
	for _, group := range statusKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(lowered, keyword) {
				return group.status
			}
		}
	}
	return StatusUnknown
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a carrier timestamp string.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
