package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/gateway/sslcommerz"
)

// Gateway providers.
const (
	ProviderSandbox    = "sandbox"
	ProviderSSLCommerz = "sslcommerz"
	ProviderNone       = "none"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HS256 secret for bearer tokens (SHOP_JWT_SECRET)" flag:"jwt-secret"`
	Delivery    DeliveryConfig
	Checkout    CheckoutConfig
	Gateway     GatewayConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DeliveryConfig sets delivery charges by destination.
type DeliveryConfig struct {
	MetroKeyword string  `default:"dhaka" usage:"Address substring that marks metro delivery"`
	MetroRate    float64 `default:"60"    usage:"Delivery charge inside the metro area"`
	DefaultRate  float64 `default:"120"   usage:"Delivery charge everywhere else"`
}

// Classifier returns the delivery settings as domain configuration.
func (c DeliveryConfig) Classifier() delivery.Config {
	return delivery.Config{
		MetroKeyword: c.MetroKeyword,
		MetroRate:    decimal.NewFromFloat(c.MetroRate),
		DefaultRate:  decimal.NewFromFloat(c.DefaultRate),
	}
}

// CheckoutConfig bounds the checkout transaction.
type CheckoutConfig struct {
	TxTimeout time.Duration `default:"5s" usage:"Maximum duration of the order and payment transaction" flag:"tx-timeout"`
}

// Coordinator returns the checkout settings as domain configuration.
func (c CheckoutConfig) Coordinator() checkout.Config {
	return checkout.Config{TxTimeout: c.TxTimeout}
}

// GatewayConfig selects and configures the online payment gateway.
type GatewayConfig struct {
	Provider   string `default:"none" usage:"Payment gateway: sandbox, sslcommerz or none" flag:"gateway"`
	SandboxURL string `default:"http://localhost:8080/sandbox/pay" usage:"Base URL for sandbox payment pages, served under /sandbox/pay"`
	SSLCommerz sslcommerz.Config
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Rate  float64 `default:"10" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set SHOP_JWT_SECRET or JWT_SECRET")
	}
	if err := c.Delivery.Classifier().Validate(); err != nil {
		return err
	}
	if c.Checkout.TxTimeout <= 0 {
		return errors.New("checkout transaction timeout must be positive")
	}
	switch c.Gateway.Provider {
	case ProviderSandbox, ProviderNone:
	case ProviderSSLCommerz:
		if !c.Gateway.SSLCommerz.Enabled() {
			return errors.New("sslcommerz gateway requires store id and password")
		}
	default:
		return errors.Errorf("unknown payment gateway %q", c.Gateway.Provider)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.JWTSecret == "" {
		c.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
