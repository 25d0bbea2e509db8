package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

type MockHistoryFetcher struct {
	results map[string]map[string]Result // carrier -> tracking number -> result
	calls   []string
}

func (m *MockHistoryFetcher) FetchHistory(ctx context.Context, carrierName, trackingNumber string) Result {
	m.calls = append(m.calls, carrierName+":"+trackingNumber)
	if byNumber, ok := m.results[carrierName]; ok {
		if result, ok := byNumber[trackingNumber]; ok {
			return result
		}
	}
	return Result{OK: false, Carrier: carrierName, TrackingNumber: trackingNumber, ErrorCode: "carrier_not_supported"}
}

type MockPackageStore struct {
	packages []db.Package
	writes   map[uuid.UUID]time.Time
	writeErr error
	loadErr  error
}

func newMockPackageStore(packages ...db.Package) *MockPackageStore {
	return &MockPackageStore{packages: packages, writes: map[uuid.UUID]time.Time{}}
}

func (m *MockPackageStore) PackagesWithTracking(ctx context.Context) ([]db.Package, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []db.Package
	for _, pkg := range m.packages {
		if len(pkg.TrackingNumbers) > 0 {
			out = append(out, m.current(pkg))
		}
	}
	return out, nil
}

func (m *MockPackageStore) PackagesByOrder(ctx context.Context, externalOrderID string) ([]db.Package, error) {
	var out []db.Package
	for _, pkg := range m.packages {
		if pkg.ExternalOrderID == externalOrderID {
			out = append(out, m.current(pkg))
		}
	}
	return out, nil
}

func (m *MockPackageStore) SetPackageDeliveryDate(ctx context.Context, id uuid.UUID, deliveryDate time.Time) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	// Forward-only, mirroring the conditional UPDATE in storage.
	if existing, ok := m.writes[id]; ok && !deliveryDate.After(existing) {
		return nil
	}
	for _, pkg := range m.packages {
		if pkg.ID == id && pkg.DeliveryDate != nil && !deliveryDate.After(*pkg.DeliveryDate) {
			return nil
		}
	}
	m.writes[id] = deliveryDate
	return nil
}

// current applies recorded writes on top of the seeded row.
func (m *MockPackageStore) current(pkg db.Package) db.Package {
	if written, ok := m.writes[pkg.ID]; ok {
		copied := written
		pkg.DeliveryDate = &copied
	}
	return pkg
}

func deliveredResult(carrierName, ts string) Result {
	return Result{
		OK:      true,
		Carrier: carrierName,
		Events: []Event{
			{Status: StatusDelivered, Timestamp: ts},
			{Status: StatusInTransit, Timestamp: "2026-08-15T08:00:00Z"},
		},
	}
}

func TestReconciler_SetsPackageDeliveryDate(t *testing.T) {
	pkgID := uuid.New()
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		TrackingNumbers: []string{"TN-1"},
	})
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": deliveredResult("dhl", "2026-08-20T10:00:00Z")},
	}}

	r := NewReconciler(history, store, []string{"dhl", "dpd"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	written, ok := store.writes[pkgID]
	if !ok {
		t.Fatal("expected delivery date write")
	}
	want := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if !written.Equal(want) {
		t.Errorf("expected %s, got %s", want, written)
	}
}

func TestReconciler_CompletedStatusIsTerminal(t *testing.T) {
	pkgID := uuid.New()
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		TrackingNumbers: []string{"TN-1"},
	})
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": {
			OK:      true,
			Carrier: "dhl",
			Events: []Event{
				{Status: "completed", Timestamp: "2026-08-21T12:00:00Z"},
				{Status: StatusDelivered, Timestamp: "2026-08-20T10:00:00Z"},
			},
		}},
	}}

	r := NewReconciler(history, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The later completed event wins over the earlier delivered one.
	want := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	if written := store.writes[pkgID]; !written.Equal(want) {
		t.Errorf("expected max terminal timestamp %s, got %s", want, written)
	}
}

func TestReconciler_FirstOKCarrierWins(t *testing.T) {
	pkgID := uuid.New()
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		TrackingNumbers: []string{"TN-1"},
	})
	// dhl answers ok with no terminal event; dpd would have one but must not
	// be consulted.
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": {OK: true, Carrier: "dhl", Events: []Event{{Status: StatusInTransit, Timestamp: "2026-08-19T08:00:00Z"}}}},
		"dpd": {"TN-1": deliveredResult("dpd", "2026-08-20T10:00:00Z")},
	}}

	r := NewReconciler(history, store, []string{"dhl", "dpd"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.writes[pkgID]; ok {
		t.Error("first ok carrier had no terminal event, no write expected")
	}
	for _, call := range history.calls {
		if call == "dpd:TN-1" {
			t.Error("dpd must not be consulted after dhl answered ok")
		}
	}
}

func TestReconciler_FailedCarrierFallsThrough(t *testing.T) {
	pkgID := uuid.New()
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		TrackingNumbers: []string{"TN-1"},
	})
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": {OK: false, Carrier: "dhl", ErrorCode: "timeout"}},
		"dpd": {"TN-1": deliveredResult("dpd", "2026-08-20T10:00:00Z")},
	}}

	r := NewReconciler(history, store, []string{"dhl", "dpd"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.writes[pkgID]; !ok {
		t.Error("expected fall-through to dpd after dhl failure")
	}
}

func TestReconciler_MonotonicDeliveryDate(t *testing.T) {
	pkgID := uuid.New()
	existing := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		DeliveryDate:    &existing,
		TrackingNumbers: []string{"TN-1"},
	})
	// Carrier reports an older terminal date than what is stored.
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": deliveredResult("dhl", "2026-08-20T10:00:00Z")},
	}}

	r := NewReconciler(history, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if written, ok := store.writes[pkgID]; ok && written.Before(existing) {
		t.Errorf("delivery date moved backwards: %s -> %s", existing, written)
	}
}

func TestReconciler_OrderRollupWhenAllDelivered(t *testing.T) {
	pkg1 := uuid.New()
	pkg2 := uuid.New()
	store := newMockPackageStore(
		db.Package{ID: pkg1, ExternalOrderID: "ORD-1", TrackingNumbers: []string{"TN-1"}},
		db.Package{ID: pkg2, ExternalOrderID: "ORD-1", TrackingNumbers: []string{"TN-2"}},
	)
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {
			"TN-1": deliveredResult("dhl", "2026-08-20T10:00:00Z"),
			"TN-2": deliveredResult("dhl", "2026-08-22T15:00:00Z"),
		},
	}}

	r := NewReconciler(history, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both packages end up on the max date across the order.
	want := time.Date(2026, 8, 22, 15, 0, 0, 0, time.UTC)
	for _, id := range []uuid.UUID{pkg1, pkg2} {
		if written := store.writes[id]; !written.Equal(want) {
			t.Errorf("package %s: expected rollup date %s, got %s", id, want, written)
		}
	}
}

func TestReconciler_UndeliveredPackageBlocksRollup(t *testing.T) {
	pkg1 := uuid.New()
	pkg2 := uuid.New()
	store := newMockPackageStore(
		db.Package{ID: pkg1, ExternalOrderID: "ORD-1", TrackingNumbers: []string{"TN-1"}},
		db.Package{ID: pkg2, ExternalOrderID: "ORD-1", TrackingNumbers: []string{"TN-2"}},
	)
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {
			"TN-1": deliveredResult("dhl", "2026-08-20T10:00:00Z"),
			"TN-2": {OK: true, Carrier: "dhl", Events: []Event{{Status: StatusInTransit, Timestamp: "2026-08-21T08:00:00Z"}}},
		},
	}}

	r := NewReconciler(history, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The delivered package keeps its own date.
	want := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if written := store.writes[pkg1]; !written.Equal(want) {
		t.Errorf("expected per-package date %s on pkg1, got %s", want, written)
	}
	// The undelivered one gets nothing.
	if _, ok := store.writes[pkg2]; ok {
		t.Error("undelivered package must not receive a rollup date")
	}
}

func TestReconciler_UnparseableTimestampSkipped(t *testing.T) {
	pkgID := uuid.New()
	store := newMockPackageStore(db.Package{
		ID:              pkgID,
		ExternalOrderID: "ORD-1",
		TrackingNumbers: []string{"TN-1"},
	})
	history := &MockHistoryFetcher{results: map[string]map[string]Result{
		"dhl": {"TN-1": {
			OK:      true,
			Carrier: "dhl",
			Events: []Event{
				{Status: StatusDelivered, Timestamp: "garbage"},
				{Status: StatusDelivered, Timestamp: "2026-08-20T10:00:00Z"},
			},
		}},
	}}

	r := NewReconciler(history, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if written := store.writes[pkgID]; !written.Equal(want) {
		t.Errorf("expected parseable timestamp to win, got %s", written)
	}
}

func TestReconciler_LoadErrorFailsRun(t *testing.T) {
	store := newMockPackageStore()
	store.loadErr = errors.New("database error")

	r := NewReconciler(&MockHistoryFetcher{}, store, []string{"dhl"}, zap.NewNop())
	if err := r.Sync(context.Background()); err == nil {
		t.Error("expected load error to fail the run")
	}
}
