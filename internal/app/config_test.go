package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://localhost/shop",
		Session:     SessionConfig{TTL: 30 * time.Minute},
		Notify:      NotifyConfig{Transport: TransportLog},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "no database", modify: func(c *Config) { c.DatabaseURL = "" }, errMsg: "database URL is required"},
		{name: "amqp", modify: func(c *Config) { c.Notify.Transport = TransportAMQP }},
		{
			name:   "sendgrid without key",
			modify: func(c *Config) { c.Notify.Transport = TransportSendGrid },
			errMsg: "requires SHOP_NOTIFY_SENDGRID_API_KEY",
		},
		{
			name: "sendgrid",
			modify: func(c *Config) {
				c.Notify.Transport = TransportSendGrid
				c.Notify.SendGridAPIKey = "SG.key"
			},
		},
		{name: "unknown transport", modify: func(c *Config) { c.Notify.Transport = "pigeon" }, errMsg: "unknown notify transport"},
		{name: "zero ttl", modify: func(c *Config) { c.Session.TTL = 0 }, errMsg: "session TTL must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/shop")
	t.Setenv("REDIS_URL", "redis://platform:6379/1")
	t.Setenv("SHOP_REDIS_URL", "")
	t.Setenv("PORT", "9090")

	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.Notify.Transport = " SendGrid "
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/shop", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/1", cfg.Redis.URL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, TransportSendGrid, cfg.Notify.Transport)
}

func TestConfig_ExplicitValuesWin(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/shop")
	t.Setenv("PORT", "9090")

	cfg := validConfig()
	cfg.Addr = "127.0.0.1:8000"
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://localhost/shop", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr)
}
