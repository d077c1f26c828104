package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silencedor/commerce-api/internal/domain/cart"
)

const (
	getCartByCustomerSQL = `SELECT id, customer_id, session_key, created_at, updated_at
		FROM carts WHERE customer_id = $1`

	getCartBySessionSQL = `SELECT id, customer_id, session_key, created_at, updated_at
		FROM carts WHERE session_key = $1`

	insertCartSQL = `INSERT INTO carts (id, customer_id, session_key)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT DO NOTHING`

	listCartItemsSQL = `SELECT product_id, quantity FROM cart_items
		WHERE cart_id = $1 ORDER BY created_at`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING quantity`

	setCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. One cart
// per owner is enforced by partial unique indexes on customer_id and
// session_key.
type CartRepository struct {
	pool  *pgxpool.Pool
	newID func() string
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool, newID func() string) *CartRepository {
	return &CartRepository{pool: pool, newID: newID}
}

// GetOrCreate returns the owner's cart with its items, creating an empty
// cart lazily. Concurrent creation for the same owner resolves through the
// unique index: the insert is a no-op and the existing row wins.
func (r *CartRepository) GetOrCreate(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	if !owner.Valid() {
		return nil, cart.ErrNoOwner
	}

	c, err := r.get(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, insertCartSQL, r.newID(), owner.CustomerID, owner.SessionKey); err != nil {
		return nil, fmt.Errorf("creating cart: %w", err)
	}
	return r.get(ctx, owner)
}

func (r *CartRepository) get(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	query := getCartByCustomerSQL
	arg := owner.CustomerID
	if owner.SessionKey != "" {
		query = getCartBySessionSQL
		arg = owner.SessionKey
	}

	var (
		c          cart.Cart
		customerID *string
		sessionKey *string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &customerID, &sessionKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if customerID != nil {
		c.Owner.CustomerID = *customerID
	}
	if sessionKey != nil {
		c.Owner.SessionKey = *sessionKey
	}

	rows, err := r.pool.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var item cart.Item
		err := row.Scan(&item.ProductID, &item.Quantity)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return &c, nil
}

// AddItemQuantity inserts the line or atomically adds delta to its quantity.
func (r *CartRepository) AddItemQuantity(ctx context.Context, cartID, productID string, delta int) (int, error) {
	var quantity int
	if err := r.pool.QueryRow(ctx, addCartItemSQL, cartID, productID, delta).Scan(&quantity); err != nil {
		return 0, fmt.Errorf("adding cart item: %w", err)
	}
	_, _ = r.pool.Exec(ctx, touchCartSQL, cartID)
	return quantity, nil
}

// SetItemQuantity overwrites the line quantity, inserting when missing.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	if _, err := r.pool.Exec(ctx, setCartItemSQL, cartID, productID, quantity); err != nil {
		return fmt.Errorf("setting cart item quantity: %w", err)
	}
	_, _ = r.pool.Exec(ctx, touchCartSQL, cartID)
	return nil
}

// RemoveItem deletes the line. Absent lines are not an error.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string) error {
	if _, err := r.pool.Exec(ctx, removeCartItemSQL, cartID, productID); err != nil {
		return fmt.Errorf("removing cart item: %w", err)
	}
	return nil
}

// Clear removes all lines, keeping the cart row.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
