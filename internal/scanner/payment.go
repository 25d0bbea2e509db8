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

// reminderIntervalDays is the Vorkasse reminder cadence.
const reminderIntervalDays = 5

// OrderStore supplies orders still waiting on a prepayment.
type OrderStore interface {
	OpenPrepaymentOrders(ctx context.Context) ([]db.Order, error)
}

// PaymentReminderScanner dispatches Vorkasse payment reminders every five
// days after the order date. The reminder number is part of the dedup key, so
// each 5-day milestone notifies exactly once no matter how often the scanner
// runs that day.
type PaymentReminderScanner struct {
	store      OrderStore
	dispatcher Dispatcher
	scopes     ScopeResolver
	logger     *zap.Logger
	now        func() time.Time
}

func NewPaymentReminderScanner(store OrderStore, dispatcher Dispatcher, scopes ScopeResolver, logger *zap.Logger) *PaymentReminderScanner {
	return &PaymentReminderScanner{
		store:      store,
		dispatcher: dispatcher,
		scopes:     scopes,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one scan.
func (s *PaymentReminderScanner) Run(ctx context.Context) error {
	orders, err := s.store.OpenPrepaymentOrders(ctx)
	if err != nil {
		return fmt.Errorf("payment-reminder scan: %w", err)
	}

	now := s.now()

	for _, order := range orders {
		elapsedDays := int(now.Sub(order.OrderDate).Hours() / 24)
		if elapsedDays < reminderIntervalDays || elapsedDays%reminderIntervalDays != 0 {
			continue
		}
		reminderNo := elapsedDays / reminderIntervalDays

		orderRef := order.OrderNumber
		if order.ExternalOrderID != nil && *order.ExternalOrderID != "" {
			orderRef = *order.ExternalOrderID
		}

		scope := s.scopes.Resolve(ctx, order.SourceSystem, order.OrderNumber, deref(order.SalesChannelID))

		payload := map[string]any{
			"order_number":   order.OrderNumber,
			"customer_email": order.CustomerEmail,
			"reminder_no":    reminderNo,
			"elapsed_days":   elapsedDays,
			"order_date":     order.OrderDate.Format("2006-01-02"),
		}
		if order.LanguageID != nil {
			payload["language_id"] = *order.LanguageID
		}
		if scope != nil {
			payload["sales_channel_id"] = *scope
		}

		for _, channel := range catalog.AllChannels() {
			eventKey := fmt.Sprintf("vorkasse:%s:%d:%s", orderRef, reminderNo, channel)

			_, err := s.dispatcher.Dispatch(ctx, notify.Event{
				EventKey:        eventKey,
				TriggerKey:      catalog.TriggerVorkasseReminder,
				Channel:         channel,
				ExternalOrderID: order.OrderNumber,
				SourceSystem:    order.SourceSystem,
				ScopeID:         scope,
				Payload:         payload,
			})
			if err != nil {
				s.logger.Error("payment-reminder dispatch failed",
					zap.Error(err),
					zap.String("event_key", eventKey),
				)
			}
		}
	}

	return nil
}
