package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silencedor/commerce-api/internal/domain/coupon"
	"github.com/silencedor/commerce-api/internal/domain/order"
)

const (
	orderColumns = `id, order_number, customer_id, status, payment_status,
		billing_address_id, shipping_address_id,
		subtotal, tax_amount, shipping_cost, discount_amount, total_amount,
		coupon_code, tracking_number, shipping_carrier, customer_notes,
		created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC`

	listOrderItemsSQL = `SELECT order_id, product_id, name, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1)`

	insertOrderSQL = `INSERT INTO orders (id, order_number, customer_id, status, payment_status,
			billing_address_id, shipping_address_id,
			subtotal, tax_amount, shipping_cost, discount_amount, total_amount,
			coupon_code, customer_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	insertOrderCouponSQL = `INSERT INTO order_coupons (order_id, coupon_code, discount_amount)
		VALUES ($1, (SELECT code FROM coupons WHERE UPPER(code) = UPPER($2)), $3)`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, status, notes)
		VALUES ($1, $2, $3)`

	listHistorySQL = `SELECT status, notes, created_at FROM order_status_history
		WHERE order_id = $1 ORDER BY created_at`

	lockOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	setTrackingSQL = `UPDATE orders SET tracking_number = $2, shipping_carrier = $3, updated_at = now()
		WHERE id = $1`

	// decrementStockSQL takes stock only when the product is published and,
	// for tracked inventory, has enough quantity. Zero rows means the line
	// cannot be fulfilled.
	decrementStockSQL = `UPDATE products
		SET quantity = CASE WHEN track_inventory THEN quantity - $2 ELSE quantity END
		WHERE id = $1 AND status = 'published'
		  AND (NOT track_inventory OR quantity >= $2)
		RETURNING track_inventory, quantity`

	availableStockSQL = `SELECT quantity FROM products WHERE id = $1 AND status = 'published'`
)

var (
	_ order.Repository    = (*OrderRepository)(nil)
	_ order.CheckoutStore = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.CheckoutStore backed
// by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder persists a priced order atomically: conditional stock
// decrements, conditional coupon consumption, the order with items, applied
// coupon and initial history row, and the cart clear all commit or roll back
// together. It returns the remaining stock levels of tracked products the
// order depleted.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order, cartID string) ([]order.StockLevel, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	levels := make([]order.StockLevel, 0, len(o.Items))
	for _, item := range o.Items {
		var (
			tracked   bool
			remaining int
		)
		err := tx.QueryRow(ctx, decrementStockSQL, item.ProductID, item.Quantity).Scan(&tracked, &remaining)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, stockConflict(ctx, tx, item)
			}
			return nil, fmt.Errorf("decrementing stock for %q: %w", item.ProductID, err)
		}
		if tracked {
			levels = append(levels, order.StockLevel{ProductID: item.ProductID, Remaining: remaining})
		}
	}

	if o.CouponCode != "" {
		tag, err := tx.Exec(ctx, consumeCouponUseSQL, o.CouponCode)
		if err != nil {
			return nil, fmt.Errorf("consuming coupon %q: %w", o.CouponCode, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, coupon.ErrExhausted
		}
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.CustomerID, o.Status, o.PaymentStat,
		o.BillingAddressID, o.ShippingAddressID,
		o.Subtotal, o.TaxAmount, o.ShippingCost, o.DiscountAmount, o.TotalAmount,
		o.CouponCode, o.CustomerNotes,
	)
	if err != nil {
		return nil, fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		if _, err := tx.Exec(ctx, insertOrderItemSQL,
			o.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("creating order item %q: %w", item.ProductID, err)
		}
	}

	if o.CouponCode != "" {
		if _, err := tx.Exec(ctx, insertOrderCouponSQL, o.ID, o.CouponCode, o.DiscountAmount); err != nil {
			return nil, fmt.Errorf("recording applied coupon: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, insertHistorySQL, o.ID, order.StatusPending, "order created"); err != nil {
		return nil, fmt.Errorf("appending order history: %w", err)
	}

	if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
		return nil, fmt.Errorf("clearing cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit checkout tx: %w", err)
	}
	return levels, nil
}

// stockConflict explains a conditional decrement that matched no row: the
// product has been deleted or unpublished since it was priced, or its
// remaining quantity cannot cover the line. The same error classes the
// pre-transaction validation uses, so callers see one contract on both paths.
func stockConflict(ctx context.Context, tx pgx.Tx, item order.Item) error {
	var available int
	err := tx.QueryRow(ctx, availableStockSQL, item.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return classifyStockConflict(item, nil)
		}
		return fmt.Errorf("inspecting stock for %q: %w", item.ProductID, err)
	}
	return classifyStockConflict(item, &available)
}

// classifyStockConflict maps a missing-or-unpublished product (nil available)
// to ProductUnavailableError and anything else to InsufficientStockError with
// the quantity actually left.
func classifyStockConflict(item order.Item, available *int) error {
	if available == nil {
		return &order.ProductUnavailableError{ProductID: item.ProductID}
	}
	return &order.InsufficientStockError{
		ProductID: item.ProductID,
		Requested: item.Quantity,
		Available: *available,
	}
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByNumber returns an order by its customer-facing number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumberSQL, number)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

// ListByCustomer returns the customer's orders with items, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// History returns the append-only status trail, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]order.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var (
			e      order.HistoryEntry
			status string
		)
		err := row.Scan(&status, &e.Notes, &e.CreatedAt)
		e.Status = order.Status(status)
		return e, err
	})
}

// Transition moves the order to a new status and appends the history row in
// one transaction. The current status is locked and re-checked against the
// state machine so concurrent transitions cannot skip states.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, to order.Status, notes string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, lockOrderStatusSQL, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("locking order %q: %w", orderID, err)
	}
	if !order.CanTransition(order.Status(current), to) {
		return order.ErrTransitionNotAllowed
	}

	if _, err := tx.Exec(ctx, updateOrderStatusSQL, orderID, to); err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if _, err := tx.Exec(ctx, insertHistorySQL, orderID, to, notes); err != nil {
		return fmt.Errorf("appending order history: %w", err)
	}
	return tx.Commit(ctx)
}

// SetTracking records shipment tracking details.
func (r *OrderRepository) SetTracking(ctx context.Context, orderID, trackingNumber, carrier string) error {
	tag, err := r.pool.Exec(ctx, setTrackingSQL, orderID, trackingNumber, carrier)
	if err != nil {
		return fmt.Errorf("setting tracking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := r.pool.Query(ctx, listOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]order.Item)
	for rows.Next() {
		var (
			orderID string
			item    order.Item
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		status    string
		payStatus string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &status, &payStatus,
		&o.BillingAddressID, &o.ShippingAddressID,
		&o.Subtotal, &o.TaxAmount, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount,
		&o.CouponCode, &o.TrackingNumber, &o.ShippingCarrier, &o.CustomerNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentStat = order.PaymentStatus(payStatus)
	return o, err
}
