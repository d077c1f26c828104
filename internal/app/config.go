package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/silencedor/commerce-api/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (SDOR_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SDOR_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SDOR_API_KEY_PEPPER)" flag:"api-key-pepper"`

	Pricing   PricingConfig
	Payment   PaymentConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// PricingConfig controls checkout pricing. Monetary values are decimal
// strings to avoid float rounding in configuration.
type PricingConfig struct {
	TaxRate          string `default:"0.20" usage:"Tax rate applied to the undiscounted subtotal" flag:"tax-rate"`
	ShippingCost     string `default:"5.00" usage:"Flat shipping cost per order" flag:"shipping-cost"`
	FreeShippingOver string `default:""     usage:"Subtotal above which shipping is free (empty disables)" flag:"free-shipping-over"`
}

// Order converts the string fields into the order service pricing model.
func (c PricingConfig) Order() (order.Pricing, error) {
	taxRate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "tax rate")
	}
	shipping, err := decimal.NewFromString(c.ShippingCost)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "shipping cost")
	}
	p := order.Pricing{TaxRate: taxRate, ShippingCost: shipping}
	if c.FreeShippingOver != "" {
		over, err := decimal.NewFromString(c.FreeShippingOver)
		if err != nil {
			return order.Pricing{}, errors.Wrap(err, "free shipping threshold")
		}
		p.FreeShippingOver = &over
	}
	return p, nil
}

// PaymentConfig holds payment provider settings.
type PaymentConfig struct {
	Currency         string        `default:"eur" usage:"ISO currency code for payment intents"`
	StripeSecretKey  string        `usage:"Stripe API secret key (SDOR_PAYMENT_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	StripeBaseURL    string        `default:"" usage:"Override for the Stripe API base URL (tests)" flag:"stripe-base-url"`
	WebhookSecret    string        `usage:"Shared secret for webhook signature verification" flag:"webhook-secret"`
	WebhookTolerance time.Duration `default:"5m" usage:"Max age of a signed webhook timestamp" flag:"webhook-tolerance"`
}

// NotifyConfig controls the notification dispatcher.
type NotifyConfig struct {
	Workers     int           `default:"2"     usage:"Notification worker goroutines"`
	QueueSize   int           `default:"256"   usage:"Notification queue capacity"`
	MaxAttempts int           `default:"3"     usage:"Delivery attempts before dead-lettering" flag:"notify-max-attempts"`
	BaseDelay   time.Duration `default:"500ms" usage:"Initial retry backoff" flag:"notify-base-delay"`
	MaxDelay    time.Duration `default:"30s"   usage:"Retry backoff cap" flag:"notify-max-delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SDOR",
		Files:     []string{"config.yaml", "/etc/silencedor/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SDOR_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SDOR_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
