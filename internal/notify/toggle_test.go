package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

type MockToggleStore struct {
	toggles    []db.NotificationToggle
	shouldFail bool
	lookups    int
}

func (m *MockToggleStore) FindToggle(ctx context.Context, triggerKey, channel string, scopeID *string) (db.NotificationToggle, bool, error) {
	m.lookups++
	if m.shouldFail {
		return db.NotificationToggle{}, false, errors.New("database error")
	}
	for _, toggle := range m.toggles {
		if toggle.TriggerKey != triggerKey || toggle.Channel != channel {
			continue
		}
		if toggle.SalesChannelID == nil && scopeID == nil {
			return toggle, true, nil
		}
		if toggle.SalesChannelID != nil && scopeID != nil && *toggle.SalesChannelID == *scopeID {
			return toggle, true, nil
		}
	}
	return db.NotificationToggle{}, false, nil
}

func strPtr(s string) *string { return &s }

func TestToggleResolver_DefaultEnabled(t *testing.T) {
	store := &MockToggleStore{}
	resolver := NewToggleResolver(store, zap.NewNop())

	enabled, err := resolver.IsEnabled(context.Background(), "order_placed", "email", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Error("expected default enabled when no toggle row exists")
	}
}

func TestToggleResolver_ScopedDisabledWinsOverGlobalEnabled(t *testing.T) {
	store := &MockToggleStore{
		toggles: []db.NotificationToggle{
			{TriggerKey: "order_placed", Channel: "email", SalesChannelID: nil, Enabled: true},
			{TriggerKey: "order_placed", Channel: "email", SalesChannelID: strPtr("sc-1"), Enabled: false},
		},
	}
	resolver := NewToggleResolver(store, zap.NewNop())

	enabled, err := resolver.IsEnabled(context.Background(), "order_placed", "email", strPtr("sc-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled {
		t.Error("scoped disabled row must win over the enabled global row")
	}
}

func TestToggleResolver_ScopedEnabledWinsOverGlobalDisabled(t *testing.T) {
	store := &MockToggleStore{
		toggles: []db.NotificationToggle{
			{TriggerKey: "order_placed", Channel: "email", SalesChannelID: nil, Enabled: false},
			{TriggerKey: "order_placed", Channel: "email", SalesChannelID: strPtr("sc-1"), Enabled: true},
		},
	}
	resolver := NewToggleResolver(store, zap.NewNop())

	enabled, err := resolver.IsEnabled(context.Background(), "order_placed", "email", strPtr("sc-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Error("scoped enabled row must win over the disabled global row")
	}
}

func TestToggleResolver_FallsBackToGlobalRow(t *testing.T) {
	store := &MockToggleStore{
		toggles: []db.NotificationToggle{
			{TriggerKey: "order_placed", Channel: "email", SalesChannelID: nil, Enabled: false},
		},
	}
	resolver := NewToggleResolver(store, zap.NewNop())

	enabled, err := resolver.IsEnabled(context.Background(), "order_placed", "email", strPtr("sc-other"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled {
		t.Error("expected global disabled row to apply when no scoped row exists")
	}
}

func TestToggleResolver_EmptyScopeSkipsScopedLookup(t *testing.T) {
	store := &MockToggleStore{}
	resolver := NewToggleResolver(store, zap.NewNop())

	if _, err := resolver.IsEnabled(context.Background(), "order_placed", "email", strPtr("")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lookups != 1 {
		t.Errorf("expected 1 lookup for empty scope, got %d", store.lookups)
	}
}

func TestToggleResolver_StorageErrorPropagates(t *testing.T) {
	store := &MockToggleStore{shouldFail: true}
	resolver := NewToggleResolver(store, zap.NewNop())

	if _, err := resolver.IsEnabled(context.Background(), "order_placed", "email", nil); err == nil {
		t.Error("expected storage error to propagate")
	}
}
