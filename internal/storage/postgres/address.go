package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/silencedor/commerce-api/internal/domain/address"
)

const (
	addressColumns = `id, customer_id, line1, line2, city, postal_code, country, is_default`

	getAddressByIDSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE customer_id = $1 ORDER BY is_default DESC, created_at`

	insertAddressSQL = `INSERT INTO addresses (id, customer_id, line1, line2, city, postal_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE
		WHERE customer_id = $1 AND is_default`

	setDefaultAddressSQL = `UPDATE addresses SET is_default = TRUE
		WHERE id = $1 AND customer_id = $2`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// GetByID returns an address by id.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// ListByCustomer returns the customer's addresses, default first.
func (r *AddressRepository) ListByCustomer(ctx context.Context, customerID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// Create persists a new address. A new default clears the previous one in
// the same transaction.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin address tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if a.IsDefault {
		if _, err := tx.Exec(ctx, clearDefaultAddressSQL, a.CustomerID); err != nil {
			return fmt.Errorf("clearing default address: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, insertAddressSQL,
		a.ID, a.CustomerID, a.Line1, a.Line2, a.City, a.PostalCode, a.Country, a.IsDefault,
	); err != nil {
		return fmt.Errorf("creating address %q: %w", a.ID, err)
	}
	return tx.Commit(ctx)
}

// SetDefault marks the address as the customer's default. The previous
// default is cleared and the new one set in a single transaction, keeping
// the at-most-one-default invariant under concurrency.
func (r *AddressRepository) SetDefault(ctx context.Context, customerID, addressID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin address tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, clearDefaultAddressSQL, customerID); err != nil {
		return fmt.Errorf("clearing default address: %w", err)
	}
	tag, err := tx.Exec(ctx, setDefaultAddressSQL, addressID, customerID)
	if err != nil {
		return fmt.Errorf("setting default address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.IsDefault)
	return a, err
}
