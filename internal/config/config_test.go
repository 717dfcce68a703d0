package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MASTER_DATABASE_URL", "file:master?mode=memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	os.Unsetenv("APP_PORT")
	os.Unsetenv("TENANT_IDLE_TTL")
	os.Unsetenv("TRUSTED_PROXIES")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 10*time.Minute, cfg.TenantIdleTTL)
	assert.Equal(t, "clube.events", cfg.RabbitExchange)
	assert.Equal(t, "log", cfg.MailProvider)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, "clube.dlx", cfg.RabbitDLX)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CashbackRepublishAfter)
	assert.Equal(t, 5*time.Minute, cfg.CashbackRepublishInterval)
	assert.Empty(t, cfg.WhatsAppAppSecret)

	pcts, err := cfg.CashbackPercentages()
	require.NoError(t, err)
	assert.Equal(t, "60", pcts[0].String())
	assert.Equal(t, "5", pcts[3].String())
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("MASTER_DATABASE_URL", "x")
	os.Unsetenv("JWT_SECRET")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DBDriver:            "postgres",
			TenantIdleTTL:       time.Minute,
			TenantSweep:         time.Second,
			CashbackConsumerPct: "60",
			CashbackPlatformPct: "20",
			CashbackReferrerPct: "15",
			CashbackUplinePct:   "5",
			MailProvider:        "log",
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, true},
		{"template without slug", func(c *Config) { c.TenantDSNTemplate = "postgres://db/tenant" }, true},
		{"template with slug", func(c *Config) { c.TenantDSNTemplate = "postgres://db/club_{slug}" }, false},
		{"bad percentage", func(c *Config) { c.CashbackUplinePct = "five" }, true},
		{"zero ttl", func(c *Config) { c.TenantIdleTTL = 0 }, true},
		{"unknown mail provider", func(c *Config) { c.MailProvider = "carrier-pigeon" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTenantDSN(t *testing.T) {
	c := Config{TenantDSNTemplate: "postgres://u:p@db:5432/club_{slug}?sslmode=disable"}
	assert.Equal(t, "postgres://u:p@db:5432/club_acme?sslmode=disable", c.TenantDSN("acme"))
}

func TestString_MasksSecrets(t *testing.T) {
	c := Config{AppPort: "8080", DBDriver: "mysql", JWTSecret: "topsecret", MailAPIKey: "key"}
	s := c.String()
	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "key")
}
