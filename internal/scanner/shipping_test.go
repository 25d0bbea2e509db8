package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/catalog"
	"github.com/lalithlochan/orderpulse/internal/db"
)

type MockPositionStore struct {
	positions []db.Position
	err       error
	queried   bool
}

func (m *MockPositionStore) OverduePositions(ctx context.Context, now time.Time) ([]db.Position, error) {
	m.queried = true
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func shippingScannerAt(t *testing.T, store *MockPositionStore, dispatcher *MockDispatcher, now time.Time) *ShippingOverdueScanner {
	t.Helper()
	s := NewShippingOverdueScanner(store, dispatcher, &MockScopeResolver{}, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestShippingOverdueScanner_SkipsBeforeNoon(t *testing.T) {
	store := &MockPositionStore{positions: []db.Position{{ID: uuid.New()}}}
	dispatcher := &MockDispatcher{}
	morning := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	s := shippingScannerAt(t, store, dispatcher, morning)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.queried {
		t.Error("scan before noon must not query storage")
	}
	if len(dispatcher.events) != 0 {
		t.Errorf("expected no dispatches before noon, got %d", len(dispatcher.events))
	}
}

func TestShippingOverdueScanner_DispatchesPerPositionAndChannel(t *testing.T) {
	posID := uuid.New()
	deadline := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	store := &MockPositionStore{positions: []db.Position{
		{
			ID:                     posID,
			OrderNumber:            "ORD-1",
			ProductLabel:           "Widget",
			CustomerEmail:          "c@example.com",
			CalculatedDeliveryDate: &deadline,
		},
	}}
	dispatcher := &MockDispatcher{}
	afternoon := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)

	s := shippingScannerAt(t, store, dispatcher, afternoon)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	channels := catalog.AllChannels()
	if len(dispatcher.events) != len(channels) {
		t.Fatalf("expected %d dispatches, got %d", len(channels), len(dispatcher.events))
	}

	for i, channel := range channels {
		wantKey := fmt.Sprintf("task:shipping_overdue:%s:%s", posID, channel)
		if dispatcher.events[i].EventKey != wantKey {
			t.Errorf("expected key %q, got %q", wantKey, dispatcher.events[i].EventKey)
		}
		if dispatcher.events[i].TriggerKey != catalog.TriggerShippingOverdue {
			t.Errorf("expected trigger shipping_overdue, got %q", dispatcher.events[i].TriggerKey)
		}
	}
}

func TestShippingOverdueScanner_DueDateSkipsWeekend(t *testing.T) {
	store := &MockPositionStore{positions: []db.Position{{ID: uuid.New()}}}
	dispatcher := &MockDispatcher{}
	friday := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	s := shippingScannerAt(t, store, dispatcher, friday)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dispatcher.events) == 0 {
		t.Fatal("expected dispatches")
	}
	dueDate, ok := dispatcher.events[0].Payload["due_date"].(string)
	if !ok {
		t.Fatal("expected due_date in payload")
	}
	if dueDate != "2026-08-31" { // the following Monday
		t.Errorf("expected due date 2026-08-31, got %s", dueDate)
	}
}

func TestShippingOverdueScanner_RerunProducesSameKeys(t *testing.T) {
	posID := uuid.New()
	store := &MockPositionStore{positions: []db.Position{{ID: posID, OrderNumber: "ORD-1"}}}
	afternoon := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)

	first := &MockDispatcher{}
	s := shippingScannerAt(t, store, first, afternoon)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &MockDispatcher{}
	s = shippingScannerAt(t, store, second, afternoon.Add(2*time.Hour))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first.keys() {
		if first.keys()[i] != second.keys()[i] {
			t.Errorf("key %d changed across reruns: %q vs %q", i, first.keys()[i], second.keys()[i])
		}
	}
}

func TestShippingOverdueScanner_StoreError(t *testing.T) {
	store := &MockPositionStore{err: errors.New("database error")}
	afternoon := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)

	s := shippingScannerAt(t, store, &MockDispatcher{}, afternoon)
	if err := s.Run(context.Background()); err == nil {
		t.Error("expected store error to propagate")
	}
}
