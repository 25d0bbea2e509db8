package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

// ToggleStore looks up toggle rows for exact (trigger, channel, scope)
// combinations.
type ToggleStore interface {
	FindToggle(ctx context.Context, triggerKey, channel string, scopeID *string) (db.NotificationToggle, bool, error)
}

// ToggleResolver decides whether a (trigger, channel, scope) combination is
// currently enabled.
type ToggleResolver struct {
	store  ToggleStore
	logger *zap.Logger
}

func NewToggleResolver(store ToggleStore, logger *zap.Logger) *ToggleResolver {
	return &ToggleResolver{store: store, logger: logger}
}

// IsEnabled resolves the toggle for a dispatch decision. A scoped row wins
// outright over the global row, even when it disables the trigger. When no
// row exists at all the default is enabled: silence must be explicit, not
// implicit. Storage errors propagate; the caller treats dispatch as blocked.
func (r *ToggleResolver) IsEnabled(ctx context.Context, triggerKey, channel string, scopeID *string) (bool, error) {
	if scopeID != nil && *scopeID != "" {
		toggle, found, err := r.store.FindToggle(ctx, triggerKey, channel, scopeID)
		if err != nil {
			return false, err
		}
		if found {
			return toggle.Enabled, nil
		}
	}

	toggle, found, err := r.store.FindToggle(ctx, triggerKey, channel, nil)
	if err != nil {
		return false, err
	}
	if found {
		return toggle.Enabled, nil
	}

	return true, nil
}
