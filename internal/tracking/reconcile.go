package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
	"github.com/lalithlochan/orderpulse/internal/metrics"
)

// HistoryFetcher is the slice of the history service the reconciler needs.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, carrierName, trackingNumber string) Result
}

// PackageStore is the package/order storage the reconciler reads and writes.
// SetPackageDeliveryDate must be forward-only: it never clears or rewinds a
// previously set date.
type PackageStore interface {
	PackagesWithTracking(ctx context.Context) ([]db.Package, error)
	PackagesByOrder(ctx context.Context, externalOrderID string) ([]db.Package, error)
	SetPackageDeliveryDate(ctx context.Context, id uuid.UUID, deliveryDate time.Time) error
}

// terminalStatuses is the set of canonical statuses meaning the shipment
// journey ended successfully.
var terminalStatuses = map[string]bool{
	StatusDelivered: true,
	"completed":     true,
}

// Reconciler aggregates carrier histories into package- and order-level
// delivery dates.
type Reconciler struct {
	history  HistoryFetcher
	store    PackageStore
	carriers []string
	logger   *zap.Logger
}

// NewReconciler creates a reconciler. carriers is the configured priority
// order tried per tracking number.
func NewReconciler(history HistoryFetcher, store PackageStore, carriers []string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		history:  history,
		store:    store,
		carriers: carriers,
		logger:   logger,
	}
}

// Sync runs one reconciliation pass. Per-package and per-order failures are
// logged and skipped; only the initial package query can fail the run.
//
// An order-level rollup is propagated only when every package of the order
// has a non-null delivery date, re-checked against a fresh read at
// propagation time. A single undelivered package blocks the whole order's
// rollup while leaving the per-package dates already set untouched.
func (r *Reconciler) Sync(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordSyncDuration(time.Since(start)) }()

	packages, err := r.store.PackagesWithTracking(ctx)
	if err != nil {
		return fmt.Errorf("sync: load packages: %w", err)
	}

	orderIDs := map[string]struct{}{}

	for _, pkg := range packages {
		orderIDs[pkg.ExternalOrderID] = struct{}{}

		terminal, found := r.terminalDateForPackage(ctx, pkg)
		if !found {
			continue
		}

		if pkg.DeliveryDate != nil && !terminal.After(*pkg.DeliveryDate) {
			continue
		}

		if err := r.store.SetPackageDeliveryDate(ctx, pkg.ID, terminal); err != nil {
			r.logger.Error("failed to advance package delivery date",
				zap.Error(err),
				zap.String("package_id", pkg.ID.String()),
			)
			continue
		}

		metrics.RecordPackageReconciled()
		r.logger.Info("package delivery date advanced",
			zap.String("package_id", pkg.ID.String()),
			zap.String("external_order_id", pkg.ExternalOrderID),
			zap.Time("delivery_date", terminal),
		)
	}

	for orderID := range orderIDs {
		r.rollupOrder(ctx, orderID)
	}

	return nil
}

// terminalDateForPackage resolves the latest terminal timestamp across the
// package's tracking numbers. Per tracking number the configured carriers are
// tried in priority order and the first ok=true result wins; tracking numbers
// are assumed carrier-unambiguous, so an ok=false result (including "not
// supported") falls through to the next carrier rather than failing.
func (r *Reconciler) terminalDateForPackage(ctx context.Context, pkg db.Package) (time.Time, bool) {
	var latest time.Time
	found := false

	for _, trackingNumber := range pkg.TrackingNumbers {
		ts, ok := r.terminalDateForNumber(ctx, trackingNumber)
		if ok && ts.After(latest) {
			latest = ts
			found = true
		}
	}

	return latest, found
}

func (r *Reconciler) terminalDateForNumber(ctx context.Context, trackingNumber string) (time.Time, bool) {
	for _, carrierName := range r.carriers {
		result := r.history.FetchHistory(ctx, carrierName, trackingNumber)
		if !result.OK {
			r.logger.Debug("carrier gave no result for tracking number",
				zap.String("carrier", carrierName),
				zap.String("tracking_number", trackingNumber),
				zap.String("code", result.ErrorCode),
			)
			continue
		}

		var latest time.Time
		found := false
		for _, event := range result.Events {
			if !terminalStatuses[event.Status] {
				continue
			}
			ts, err := ParseTimestamp(event.Timestamp)
			if err != nil {
				r.logger.Warn("skipping terminal event with unparseable timestamp",
					zap.String("carrier", carrierName),
					zap.String("tracking_number", trackingNumber),
					zap.String("timestamp", event.Timestamp),
				)
				continue
			}
			if ts.After(latest) {
				latest = ts
				found = true
			}
		}

		// First ok carrier wins, terminal events or not.
		return latest, found
	}

	return time.Time{}, false
}

// rollupOrder re-reads all packages of the order and propagates the maximum
// delivery date onto every package, but only when none of them is missing a
// terminal date.
func (r *Reconciler) rollupOrder(ctx context.Context, externalOrderID string) {
	packages, err := r.store.PackagesByOrder(ctx, externalOrderID)
	if err != nil {
		r.logger.Error("failed to load packages for rollup",
			zap.Error(err),
			zap.String("external_order_id", externalOrderID),
		)
		return
	}
	if len(packages) == 0 {
		return
	}

	var rollup time.Time
	for _, pkg := range packages {
		if pkg.DeliveryDate == nil {
			r.logger.Debug("order rollup blocked by undelivered package",
				zap.String("external_order_id", externalOrderID),
				zap.String("package_id", pkg.ID.String()),
			)
			return
		}
		if pkg.DeliveryDate.After(rollup) {
			rollup = *pkg.DeliveryDate
		}
	}

	for _, pkg := range packages {
		if err := r.store.SetPackageDeliveryDate(ctx, pkg.ID, rollup); err != nil {
			r.logger.Error("failed to propagate order rollup date",
				zap.Error(err),
				zap.String("external_order_id", externalOrderID),
				zap.String("package_id", pkg.ID.String()),
			)
			return
		}
	}

	metrics.RecordOrderRolledUp()
	r.logger.Info("order rollup delivery date propagated",
		zap.String("external_order_id", externalOrderID),
		zap.Time("delivery_date", rollup),
	)
}
