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

// DateHistoryListener reacts to delivery-date changes written upstream. The
// key is derived from the position's identity and the new date; no extra
// idempotency logic is needed beyond the dispatcher's guarantee.
type DateHistoryListener struct {
	dispatcher Dispatcher
	scopes     ScopeResolver
	logger     *zap.Logger
}

func NewDateHistoryListener(dispatcher Dispatcher, scopes ScopeResolver, logger *zap.Logger) *DateHistoryListener {
	return &DateHistoryListener{dispatcher: dispatcher, scopes: scopes, logger: logger}
}

// OnDeliveryDateChanged dispatches a notification for one date change.
func (l *DateHistoryListener) OnDeliveryDateChanged(ctx context.Context, pos db.Position, previous, current time.Time) error {
	scope := l.scopes.Resolve(ctx, pos.SourceSystem, pos.ExternalOrderID, deref(pos.SalesChannelID))

	payload := map[string]any{
		"position_id":    pos.ID.String(),
		"order_number":   pos.OrderNumber,
		"product_label":  pos.ProductLabel,
		"customer_email": pos.CustomerEmail,
		"previous_date":  previous.Format("2006-01-02"),
		"current_date":   current.Format("2006-01-02"),
	}
	if scope != nil {
		payload["sales_channel_id"] = *scope
	}

	for _, channel := range catalog.AllChannels() {
		eventKey := fmt.Sprintf("datehistory:%s:%s:%s", pos.ID, current.Format("2006-01-02"), channel)

		_, err := l.dispatcher.Dispatch(ctx, notify.Event{
			EventKey:        eventKey,
			TriggerKey:      catalog.TriggerDeliveryDateChanged,
			Channel:         channel,
			ExternalOrderID: pos.ExternalOrderID,
			SourceSystem:    pos.SourceSystem,
			ScopeID:         scope,
			Payload:         payload,
		})
		if err != nil {
			l.logger.Error("date-history dispatch failed",
				zap.Error(err),
				zap.String("event_key", eventKey),
			)
		}
	}

	return nil
}

// OrderPlacedListener reacts to newly written orders.
type OrderPlacedListener struct {
	dispatcher Dispatcher
	scopes     ScopeResolver
	logger     *zap.Logger
}

func NewOrderPlacedListener(dispatcher Dispatcher, scopes ScopeResolver, logger *zap.Logger) *OrderPlacedListener {
	return &OrderPlacedListener{dispatcher: dispatcher, scopes: scopes, logger: logger}
}

// OnOrderPlaced dispatches a notification for one new order.
func (l *OrderPlacedListener) OnOrderPlaced(ctx context.Context, order db.Order) error {
	scope := l.scopes.Resolve(ctx, order.SourceSystem, order.OrderNumber, deref(order.SalesChannelID))

	payload := map[string]any{
		"order_number":   order.OrderNumber,
		"customer_email": order.CustomerEmail,
		"order_date":     order.OrderDate.Format("2006-01-02"),
	}
	if order.LanguageID != nil {
		payload["language_id"] = *order.LanguageID
	}
	if scope != nil {
		payload["sales_channel_id"] = *scope
	}

	for _, channel := range catalog.AllChannels() {
		eventKey := fmt.Sprintf("order:%s:placed:%s", order.OrderNumber, channel)

		_, err := l.dispatcher.Dispatch(ctx, notify.Event{
			EventKey:        eventKey,
			TriggerKey:      catalog.TriggerOrderPlaced,
			Channel:         channel,
			ExternalOrderID: order.OrderNumber,
			SourceSystem:    order.SourceSystem,
			ScopeID:         scope,
			Payload:         payload,
		})
		if err != nil {
			l.logger.Error("order-placed dispatch failed",
				zap.Error(err),
				zap.String("event_key", eventKey),
			)
		}
	}

	return nil
}
