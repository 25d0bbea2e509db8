package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `
	id, order_number, sales_channel_id, external_order_id, source_system,
	order_date, payment_date, payment_method, cancelled, customer_email,
	language_id
`

// FindOrderByNumber returns the newest order with an exact order-number match.
func (r *Repository) FindOrderByNumber(ctx context.Context, orderNumber string) (Order, bool, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE order_number = $1
		ORDER BY order_date DESC
		LIMIT 1
	`

	order, err := scanOrder(r.db.Pool().QueryRow(ctx, query, orderNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("query order by number: %w", err)
	}

	return order, true, nil
}

// RecentOrders returns the most recently placed orders, used as the bounded
// window for custom-field external-order-id matching.
func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY order_date DESC
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// OpenPrepaymentOrders returns non-cancelled orders paid by a
// prepayment-family method whose payment has not arrived yet.
func (r *Repository) OpenPrepaymentOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE payment_date IS NULL
		  AND cancelled = FALSE
		  AND payment_method IN ('vorkasse', 'prepayment', 'bank_transfer')
		ORDER BY order_date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open prepayment orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// OverduePositions returns positions whose package has no shipping date while
// the calculated delivery date is already in the past.
func (r *Repository) OverduePositions(ctx context.Context, now time.Time) ([]Position, error) {
	query := `
		SELECT
			p.id, p.order_number, p.external_order_id, p.source_system,
			p.sales_channel_id, p.product_label, p.customer_email,
			p.calculated_delivery_date, p.shipping_date
		FROM order_positions p
		WHERE p.shipping_date IS NULL
		  AND p.calculated_delivery_date IS NOT NULL
		  AND p.calculated_delivery_date < $1
		ORDER BY p.calculated_delivery_date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query overdue positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var pos Position
		err := rows.Scan(
			&pos.ID,
			&pos.OrderNumber,
			&pos.ExternalOrderID,
			&pos.SourceSystem,
			&pos.SalesChannelID,
			&pos.ProductLabel,
			&pos.CustomerEmail,
			&pos.CalculatedDeliveryDate,
			&pos.ShippingDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return positions, nil
}

// UserEmail resolves a user id to an email address.
func (r *Repository) UserEmail(ctx context.Context, userID string) (string, bool, error) {
	var email string
	err := r.db.Pool().QueryRow(ctx,
		"SELECT email FROM users WHERE id = $1", userID,
	).Scan(&email)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query user email: %w", err)
	}

	return email, true, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.SalesChannelID,
		&order.ExternalOrderID,
		&order.SourceSystem,
		&order.OrderDate,
		&order.PaymentDate,
		&order.PaymentMethod,
		&order.Cancelled,
		&order.CustomerEmail,
		&order.LanguageID,
	)
	return order, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return orders, nil
}
