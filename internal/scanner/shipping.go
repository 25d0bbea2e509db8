package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/catalog"
	"github.com/lalithlochan/orderpulse/internal/db"
	"github.com/lalithlochan/orderpulse/internal/notify"
)

// PositionStore supplies positions whose shipment is overdue.
type PositionStore interface {
	OverduePositions(ctx context.Context, now time.Time) ([]db.Position, error)
}

// ShippingOverdueScanner dispatches a task notification for every position
// whose package has no shipping date while the calculated delivery date has
// already passed.
type ShippingOverdueScanner struct {
	store      PositionStore
	dispatcher Dispatcher
	scopes     ScopeResolver
	logger     *zap.Logger
	now        func() time.Time
}

func NewShippingOverdueScanner(store PositionStore, dispatcher Dispatcher, scopes ScopeResolver, logger *zap.Logger) *ShippingOverdueScanner {
	return &ShippingOverdueScanner{
		store:      store,
		dispatcher: dispatcher,
		scopes:     scopes,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one scan. Before noon local time the scan is skipped so
// same-day shipments recorded during the morning do not produce false
// positives.
func (s *ShippingOverdueScanner) Run(ctx context.Context) error {
	now := s.now()
	if now.Hour() < 12 {
		s.logger.Debug("skipping shipping-overdue scan before noon")
		return nil
	}

	positions, err := s.store.OverduePositions(ctx, now)
	if err != nil {
		return fmt.Errorf("shipping-overdue scan: %w", err)
	}

	dueDate := NextBusinessDay(now)

	for _, pos := range positions {
		scope := s.scopes.Resolve(ctx, pos.SourceSystem, pos.ExternalOrderID, deref(pos.SalesChannelID))

		payload := map[string]any{
			"position_id":    pos.ID.String(),
			"order_number":   pos.OrderNumber,
			"product_label":  pos.ProductLabel,
			"customer_email": pos.CustomerEmail,
			"due_date":       dueDate.Format("2006-01-02"),
		}
		if pos.CalculatedDeliveryDate != nil {
			payload["calculated_delivery_date"] = pos.CalculatedDeliveryDate.Format("2006-01-02")
		}
		if scope != nil {
			payload["sales_channel_id"] = *scope
		}

		for _, channel := range catalog.AllChannels() {
			eventKey := fmt.Sprintf("task:%s:%s:%s", catalog.TriggerShippingOverdue, pos.ID, channel)

			_, err := s.dispatcher.Dispatch(ctx, notify.Event{
				EventKey:        eventKey,
				TriggerKey:      catalog.TriggerShippingOverdue,
				Channel:         channel,
				ExternalOrderID: pos.ExternalOrderID,
				SourceSystem:    pos.SourceSystem,
				ScopeID:         scope,
				Payload:         payload,
			})
			if err != nil {
				s.logger.Error("shipping-overdue dispatch failed",
					zap.Error(err),
					zap.String("event_key", eventKey),
				)
			}
		}
	}

	return nil
}
