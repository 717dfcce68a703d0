package config

import (
	"errors"  // Validation errors
	"fmt"     // Error formatting
	"strings" // String manipulation
	"time"    // Durations

	"github.com/joho/godotenv"             // For loading .env files
	"github.com/kelseyhightower/envconfig" // Environment decoding
	"github.com/shopspring/decimal"        // Percentage arithmetic
)

// Config holds the application configuration
type Config struct {
	AppPort  string `envconfig:"APP_PORT" default:"8080"`  // Application port
	IsProd   bool   `envconfig:"IS_PROD" default:"false"`  // Is production environment
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // Logrus level name

	TrustedProxies  []string      `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"` // Comma separated
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`      // Grace period for in-flight requests

	DBDriver          string        `envconfig:"DB_DRIVER" default:"postgres"`        // postgres, mysql or sqlite
	MasterDSN         string        `envconfig:"MASTER_DATABASE_URL" required:"true"` // Master database DSN
	TenantDSNTemplate string        `envconfig:"TENANT_DATABASE_URL_TEMPLATE"`        // DSN with {slug} placeholder
	TenantIdleTTL     time.Duration `envconfig:"TENANT_IDLE_TTL" default:"10m"`       // Idle time before a tenant pool is closed
	TenantSweep       time.Duration `envconfig:"TENANT_SWEEP_INTERVAL" default:"1m"`  // How often idle pools are swept

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"` // JWT secret key
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`      // Token lifetime

	RedisAddr string `envconfig:"REDIS_ADDR"` // Redis server address, empty disables caching
	RedisPass string `envconfig:"REDIS_PASS"` // Redis password
	RedisDB   int    `envconfig:"REDIS_DB"`   // Redis database number

	RabbitURL      string `envconfig:"RABBIT_URL"`                                   // RabbitMQ URL, empty runs cashback inline
	RabbitExchange string `envconfig:"RABBIT_EXCHANGE" default:"clube.events"`       // Topic exchange
	CashbackQueue  string `envconfig:"CASHBACK_QUEUE" default:"cashback.distribute"` // Worker queue
	RabbitDLX      string `envconfig:"RABBIT_DLX" default:"clube.dlx"`               // Dead-letter exchange for rejected messages

	WorkerMetricsPort string `envconfig:"WORKER_METRICS_PORT" default:"9091"` // Worker /metrics listener

	CashbackConsumerPct string `envconfig:"CASHBACK_CONSUMER_PCT" default:"60"` // Consumer share of cashback
	CashbackPlatformPct string `envconfig:"CASHBACK_PLATFORM_PCT" default:"20"` // Platform share of cashback
	CashbackReferrerPct string `envconfig:"CASHBACK_REFERRER_PCT" default:"15"` // Direct referrer share
	CashbackUplinePct   string `envconfig:"CASHBACK_UPLINE_PCT" default:"5"`    // Referrer's referrer share

	CashbackRepublishAfter    time.Duration `envconfig:"CASHBACK_REPUBLISH_AFTER" default:"10m"`   // Age before a pending purchase is sent again
	CashbackRepublishInterval time.Duration `envconfig:"CASHBACK_REPUBLISH_INTERVAL" default:"5m"` // Sweep period, zero disables the sweep

	RPCURL     string        `envconfig:"RPC_URL"`                   // Blockchain JSON-RPC endpoint
	RPCTimeout time.Duration `envconfig:"RPC_TIMEOUT" default:"10s"` // Per call timeout

	MailProvider string `envconfig:"MAIL_PROVIDER" default:"log"` // log, resend or sendgrid
	MailAPIKey   string `envconfig:"MAIL_API_KEY"`                // Provider API key
	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@clube.local"`

	WhatsAppAPIURL      string `envconfig:"WHATSAPP_API_URL" default:"https://graph.facebook.com/v20.0"`
	WhatsAppToken       string `envconfig:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID     string `envconfig:"WHATSAPP_PHONE_ID"`
	WhatsAppVerifyToken string `envconfig:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret   string `envconfig:"WHATSAPP_APP_SECRET"`

	OutboundTimeout time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"10s"` // Mail and WhatsApp HTTP calls

	SuperAdminEmail    string `envconfig:"SUPERADMIN_EMAIL"`    // Seeded by the migrate command
	SuperAdminPassword string `envconfig:"SUPERADMIN_PASSWORD"` // Seeded by the migrate command
}

// LoadConfig loads configuration from the .env file and environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that envconfig cannot express
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TenantDSNTemplate != "" && !strings.Contains(c.TenantDSNTemplate, "{slug}") {
		return errors.New("TENANT_DATABASE_URL_TEMPLATE must contain {slug}")
	}
	if c.TenantIdleTTL <= 0 || c.TenantSweep <= 0 {
		return errors.New("tenant idle TTL and sweep interval must be positive")
	}
	if _, err := c.CashbackPercentages(); err != nil {
		return err
	}
	switch c.MailProvider {
	case "log", "resend", "sendgrid":
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", c.MailProvider)
	}
	return nil
}

// CashbackPercentages parses the four split percentages in consumer, platform, referrer, upline order
func (c *Config) CashbackPercentages() ([4]decimal.Decimal, error) {
	var out [4]decimal.Decimal
	raw := [4]string{c.CashbackConsumerPct, c.CashbackPlatformPct, c.CashbackReferrerPct, c.CashbackUplinePct}
	for i, v := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return out, fmt.Errorf("invalid cashback percentage %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}

// TenantDSN builds the DSN for a club from the template
func (c *Config) TenantDSN(slug string) string {
	return strings.ReplaceAll(c.TenantDSNTemplate, "{slug}", slug)
}

// String returns a representation safe for logs
func (c *Config) String() string {
	return fmt.Sprintf("Config{port: %s, driver: %s, redis: %t, rabbit: %t, rpc: %t, mail: %s}",
		c.AppPort, c.DBDriver, c.RedisAddr != "", c.RabbitURL != "", c.RPCURL != "", c.MailProvider)
}
