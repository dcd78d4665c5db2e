package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
)

const orderColumns = `id, checkout_id, user_id, email, items, shipping_name, shipping_address,
	shipping_postal_code, shipping_phone, payment_method, payment_ref, payment_status,
	subtotal, shipping_charge, grand_total, currency, status, created_at, updated_at`

// CreateOrder inserts the order, its outbox event and links the checkout session in one
// transaction. Either all of it is visible or none of it is.
func (r *Repository) CreateOrder(ctx context.Context, order *d.Order, event *OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO orders (id, checkout_id, user_id, email, items, shipping_name, shipping_address,
	          shipping_postal_code, shipping_phone, payment_method, payment_ref, payment_status,
	          subtotal, shipping_charge, grand_total, currency, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.CheckoutID,
		order.UserID,
		order.Email,
		itemsJSON,
		order.Shipping.Name,
		order.Shipping.Address,
		order.Shipping.PostalCode,
		order.Shipping.Phone,
		order.PaymentMethod,
		order.PaymentRef,
		order.PaymentStatus,
		order.Subtotal,
		order.ShippingCharge,
		order.GrandTotal,
		order.Currency,
		order.Status,
		order.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if event != nil {
		if err := insertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	linkQuery := `UPDATE checkout_sessions SET order_id = $1, status = $2, updated_at = NOW()
	              WHERE id = $3 AND order_id IS NULL`
	if _, err := tx.ExecContext(ctx, linkQuery, order.ID, d.CheckoutStatusOrderPersisted, order.CheckoutID); err != nil {
		return fmt.Errorf("link checkout session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error) {
	return r.getOrder(ctx, "id", id)
}

func (r *Repository) GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*d.Order, error) {
	return r.getOrder(ctx, "checkout_id", checkoutID)
}

func (r *Repository) GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*d.Order, error) {
	return r.getOrder(ctx, "payment_ref", paymentRef)
}

func (r *Repository) getOrder(ctx context.Context, column string, value any) (*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by %s: %w", column, err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID)
}

// ListOrdersByShopID returns orders containing at least one item sold by the shop.
func (r *Repository) ListOrdersByShopID(ctx context.Context, shopID string) ([]*d.Order, error) {
	filter, err := json.Marshal([]map[string]string{{"shop_id": shopID}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shop filter: %w", err)
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE items @> $1::jsonb ORDER BY created_at DESC`
	return r.listOrders(ctx, query, string(filter))
}

func (r *Repository) ListRecentOrders(ctx context.Context, limit int) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`
	return r.listOrders(ctx, query, limit)
}

// UpdateOrderStatus moves an order from one status to another. It fails with
// ErrStatusConflict when the order is no longer in the expected status.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to d.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		if _, err := r.GetOrderByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*d.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*d.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*d.Order, error) {
	var order d.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CheckoutID,
		&order.UserID,
		&order.Email,
		&itemsJSON,
		&order.Shipping.Name,
		&order.Shipping.Address,
		&order.Shipping.PostalCode,
		&order.Shipping.Phone,
		&order.PaymentMethod,
		&order.PaymentRef,
		&order.PaymentStatus,
		&order.Subtotal,
		&order.ShippingCharge,
		&order.GrandTotal,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
