// Package scanner produces business events with deterministic dedup keys and
// feeds them through the dispatcher. Keys are derived from immutable business
// facts, never from wall-clock run time, so re-running a scan never
// double-dispatches.
package scanner

import (
	"context"
	"time"

	"github.com/lalithlochan/orderpulse/internal/notify"
)

// Dispatcher is the idempotent enqueue gate the scanners call into.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notify.Event) (bool, error)
}

// ScopeResolver maps order/source hints to the owning sales channel scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, sourceSystem, externalOrderID, fallbackScopeID string) *string
}

// NextBusinessDay returns the next weekday after t, skipping Saturday and
// Sunday.
func NextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
