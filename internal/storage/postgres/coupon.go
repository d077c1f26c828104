package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/domain/coupon"
)

const getCouponByCodeSQL = `SELECT c.code, c.description, c.type, c.value,
		c.minimum_order_amount, c.maximum_discount_amount,
		c.usage_limit, c.used_count, c.valid_from, c.valid_until, c.active,
		COALESCE(array_agg(cc.customer_id) FILTER (WHERE cc.customer_id IS NOT NULL), '{}')
	FROM coupons c
	LEFT JOIN coupon_customers cc ON cc.coupon_code = c.code
	WHERE UPPER(c.code) = UPPER($1)
	GROUP BY c.code`

// consumeCouponUseSQL increments used_count only while the usage limit is not
// reached. Zero affected rows means the coupon is exhausted. Run inside the
// checkout transaction.
const consumeCouponUseSQL = `UPDATE coupons SET used_count = used_count + 1
	WHERE UPPER(code) = UPPER($1)
	  AND (usage_limit IS NULL OR used_count < usage_limit)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		couponType  string
		value       decimal.Decimal
		minOrder    *decimal.Decimal
		maxDiscount *decimal.Decimal
		usageLimit  *int32
		usedCount   int32
		validFrom   time.Time
		validUntil  time.Time
	)
	err := row.Scan(
		&rule.Code, &rule.Description, &couponType, &value,
		&minOrder, &maxDiscount, &usageLimit, &usedCount,
		&validFrom, &validUntil, &rule.Active, &rule.ApplicableCustomerIDs,
	)
	rule.Type = coupon.Type(couponType)
	rule.Value = value
	rule.MinimumOrderAmount = minOrder
	rule.MaximumDiscountAmount = maxDiscount
	if usageLimit != nil {
		limit := int(*usageLimit)
		rule.UsageLimit = &limit
	}
	rule.UsedCount = int(usedCount)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	return rule, err
}
