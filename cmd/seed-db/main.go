// Command seed-db loads development fixtures: the product catalog, a demo
// customer with an address and API keys, and a couple of working coupons.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/handler"
	"github.com/silencedor/commerce-api/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Image    struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

const (
	demoCustomerID   = "demo-customer"
	secondCustomerID = "demo-customer-2"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		adminKey     string
		secondKey    string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "customer API key to seed (or SDOR_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or SDOR_SEED_ADMIN_KEY env)")
	flag.StringVar(&secondKey, "second-api-key", "", "API key for the second demo customer (or SDOR_SEED_SECOND_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SDOR_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SDOR_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SDOR_SEED_API_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("SDOR_SEED_ADMIN_KEY")
	}
	if secondKey == "" {
		secondKey = os.Getenv("SDOR_SEED_SECOND_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SDOR_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, adminKey, secondKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, adminKey, secondKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCustomer(ctx, pool); err != nil {
		return errors.Wrap(err, "seed customer")
	}
	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, "default", demoCustomerID, apiKey, pepper, []string{"customer"}); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if adminKey != "" {
		if err := seedAPIKey(ctx, pool, "admin", demoCustomerID, adminKey, pepper, []string{"customer", "admin"}); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}
	if secondKey != "" {
		if err := seedAPIKey(ctx, pool, "secondary", secondCustomerID, secondKey, pepper, []string{"customer"}); err != nil {
			return errors.Wrap(err, "seed secondary key")
		}
	}

	return nil
}

func seedCustomer(ctx context.Context, pool *pgxpool.Pool) error {
	customers := []struct {
		id, email, name        string
		addressID, line1, city string
		postalCode             string
	}{
		{demoCustomerID, "demo@silencedor.example", "Demo Customer",
			"demo-address", "12 Rue du Faubourg", "Paris", "75008"},
		{secondCustomerID, "demo2@silencedor.example", "Second Demo Customer",
			"demo-address-2", "3 Place Bellecour", "Lyon", "69002"},
	}

	for _, c := range customers {
		slog.Info("seeding demo customer", slog.String("id", c.id))

		_, err := pool.Exec(ctx, `
			INSERT INTO customers (id, email, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			c.id, c.email, c.name,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.id)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO addresses (id, customer_id, line1, city, postal_code, country, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (id) DO NOTHING`,
			c.addressID, c.id, c.line1, c.city, c.postalCode, "FR",
		)
		if err != nil {
			return errors.Wrapf(err, "upsert address %s", c.addressID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, category, status, track_inventory, quantity,
			                      image_thumbnail, image_mobile, image_tablet, image_desktop)
			VALUES ($1, $2, $3, $4, 'published', TRUE, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				category = EXCLUDED.category,
				quantity = EXCLUDED.quantity,
				image_thumbnail = EXCLUDED.image_thumbnail,
				image_mobile = EXCLUDED.image_mobile,
				image_tablet = EXCLUDED.image_tablet,
				image_desktop = EXCLUDED.image_desktop`,
			p.ID, p.Name, p.Price, p.Category, p.Quantity,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type couponSeed struct {
	code        string
	description string
	typ         string
	value       decimal.Decimal
	minOrder    *decimal.Decimal
	maxDiscount *decimal.Decimal
	usageLimit  *int
	customers   []string
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	minTwenty := decimal.NewFromInt(20)
	maxTen := decimal.NewFromInt(10)
	one := 1

	coupons := []couponSeed{
		{
			code:        "WELCOME10",
			description: "Welcome: 10% off orders over 20",
			typ:         "percentage",
			value:       decimal.NewFromInt(10),
			minOrder:    &minTwenty,
			maxDiscount: &maxTen,
		},
		{
			code:        "FIVEOFF",
			description: "5 off any order",
			typ:         "fixed",
			value:       decimal.NewFromInt(5),
		},
		{
			code:        "SHIPFREE",
			description: "Free shipping",
			typ:         "free_shipping",
			value:       decimal.Zero,
		},
		{
			code:        "ONETIME",
			description: "2 off, single use across all customers",
			typ:         "fixed",
			value:       decimal.NewFromInt(2),
			usageLimit:  &one,
		},
		{
			code:        "VIP15",
			description: "15% off, selected customers only",
			typ:         "percentage",
			value:       decimal.NewFromInt(15),
			customers:   []string{secondCustomerID},
		},
	}

	now := time.Now()
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, description, type, value,
			                     minimum_order_amount, maximum_discount_amount,
			                     usage_limit, valid_from, valid_until, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				description = EXCLUDED.description,
				type = EXCLUDED.type,
				value = EXCLUDED.value,
				minimum_order_amount = EXCLUDED.minimum_order_amount,
				maximum_discount_amount = EXCLUDED.maximum_discount_amount,
				usage_limit = EXCLUDED.usage_limit,
				valid_until = EXCLUDED.valid_until,
				active = TRUE`,
			c.code, c.description, c.typ, c.value,
			c.minOrder, c.maxDiscount, c.usageLimit,
			now.AddDate(0, 0, -1), now.AddDate(1, 0, 0),
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		for _, customerID := range c.customers {
			_, err := pool.Exec(ctx, `
				INSERT INTO coupon_customers (coupon_code, customer_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				c.code, customerID,
			)
			if err != nil {
				return errors.Wrapf(err, "restrict coupon %s to %s", c.code, customerID)
			}
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, id, customerID, key, pepper string, scopes []string) error {
	slog.Info("seeding API key", slog.String("id", id), slog.String("customer", customerID))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, customer_id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			scopes = EXCLUDED.scopes,
			active = TRUE`,
		id, customerID, handler.HashKey(key, []byte(pepper)), id+" key", scopes,
	)
	return errors.Wrapf(err, "upsert API key %s", id)
}
