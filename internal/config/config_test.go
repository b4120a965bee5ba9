package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "percent", cfg.Payments.FeeKind)
	assert.Equal(t, 0.10, cfg.Payments.FeeRate)
	assert.Equal(t, 10*time.Second, cfg.Payments.Timeout)
	assert.Equal(t, 500.0, cfg.Lifecycle.RequiredRadiusFeet)
	assert.Equal(t, "@every 30s", cfg.Health.Schedule)
	assert.Equal(t, 2, cfg.Health.ShortCircuitThreshold)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAYMENTS_FEE_KIND", "flat")
	t.Setenv("PAYMENTS_FLAT_FEE", "2.5")
	t.Setenv("PAYMENTS_TIMEOUT", "3s")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "flat", cfg.Payments.FeeKind)
	assert.Equal(t, 2.5, cfg.Payments.FlatFee)
	assert.Equal(t, 3*time.Second, cfg.Payments.Timeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
}

func TestInvalidFeeKind(t *testing.T) {
	t.Setenv("PAYMENTS_FEE_KIND", "tiered")

	_, err := LoadFrom(viper.New())
	assert.ErrorContains(t, err, "fee_kind")
}

func TestDSNPrefersConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", d.DSN())

	d.ConnectionStr = "postgres://x"
	assert.Equal(t, "postgres://x", d.DSN())
}
