package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PackagesWithTracking returns every package that has at least one tracking
// number in its Sendungsnummer history.
func (r *Repository) PackagesWithTracking(ctx context.Context) ([]Package, error) {
	query := `
		SELECT pkg.id, pkg.external_order_id, pkg.delivery_date,
		       ARRAY_AGG(tn.tracking_number ORDER BY tn.recorded_at)
		FROM packages pkg
		JOIN package_tracking_numbers tn ON tn.package_id = pkg.id
		GROUP BY pkg.id, pkg.external_order_id, pkg.delivery_date
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query packages with tracking: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		var pkg Package
		err := rows.Scan(&pkg.ID, &pkg.ExternalOrderID, &pkg.DeliveryDate, &pkg.TrackingNumbers)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return packages, nil
}

// PackagesByOrder returns all packages belonging to one order. The rollup
// invariant is re-checked against this fresh read at propagation time.
func (r *Repository) PackagesByOrder(ctx context.Context, externalOrderID string) ([]Package, error) {
	query := `
		SELECT id, external_order_id, delivery_date
		FROM packages
		WHERE external_order_id = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, externalOrderID)
	if err != nil {
		return nil, fmt.Errorf("query packages by order: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		var pkg Package
		if err := rows.Scan(&pkg.ID, &pkg.ExternalOrderID, &pkg.DeliveryDate); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return packages, nil
}

// SetPackageDeliveryDate advances a package delivery date. The predicate keeps
// the field monotonic: a previously set date is never cleared or moved back.
func (r *Repository) SetPackageDeliveryDate(ctx context.Context, id uuid.UUID, deliveryDate time.Time) error {
	query := `
		UPDATE packages
		SET delivery_date = $1
		WHERE id = $2 AND (delivery_date IS NULL OR delivery_date < $1)
	`

	_, err := r.db.Pool().Exec(ctx, query, deliveryDate, id)
	if err != nil {
		r.logger.Error("failed to set package delivery date",
			zap.Error(err),
			zap.String("package_id", id.String()),
		)
		return fmt.Errorf("update package delivery date: %w", err)
	}

	return nil
}
