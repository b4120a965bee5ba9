// Package config loads service configuration from .env files and the environment.
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Payments      PaymentConfig      `mapstructure:"payments"`
	Lifecycle     LifecycleConfig    `mapstructure:"lifecycle"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Events        EventsConfig       `mapstructure:"events"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Health        HealthConfig       `mapstructure:"health"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Name         string   `mapstructure:"name"`
	Environment  string   `mapstructure:"environment"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	PublicURL    string   `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	ConnectionStr string `mapstructure:"connection_str"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns"`
}

// DSN returns the connection string, preferring an explicit one.
func (d DatabaseConfig) DSN() string {
	if d.ConnectionStr != "" {
		return d.ConnectionStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	SecretKey     string        `mapstructure:"secret_key"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SessionCookie string        `mapstructure:"session_cookie"`
	AdminUsername string        `mapstructure:"admin_username"`
	AdminPassword string        `mapstructure:"admin_password"`
	Google        struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"google"`
}

// PaymentConfig holds the gateway credentials and the platform fee policy.
type PaymentConfig struct {
	StripeSecretKey      string        `mapstructure:"stripe_secret_key"`
	WebhookSecret        string        `mapstructure:"webhook_secret"`
	Currency             string        `mapstructure:"currency"`
	FeeKind              string        `mapstructure:"fee_kind"`
	FeeRate              float64       `mapstructure:"fee_rate"`
	FlatFee              float64       `mapstructure:"flat_fee"`
	Timeout              time.Duration `mapstructure:"timeout"`
	OnboardingReturnURL  string        `mapstructure:"onboarding_return_url"`
	OnboardingRefreshURL string        `mapstructure:"onboarding_refresh_url"`
	BreakerTimeout       time.Duration `mapstructure:"breaker_timeout"`
}

type LifecycleConfig struct {
	LocationCheckEnabled bool    `mapstructure:"location_check_enabled"`
	RequiredRadiusFeet   float64 `mapstructure:"required_radius_feet"`
}

type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWSRegion string `mapstructure:"aws_region"`
}

type EventsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	RabbitMQURL string `mapstructure:"rabbitmq_url"`
	Exchange    string `mapstructure:"exchange"`
}

// StorageConfig selects the attachment backend: "s3", "gcs" or empty to disable.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`

	URLExpiry time.Duration `mapstructure:"url_expiry"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
}

type HealthConfig struct {
	Schedule              string        `mapstructure:"schedule"`
	ProbeTimeout          time.Duration `mapstructure:"probe_timeout"`
	ShortCircuitThreshold int           `mapstructure:"short_circuit_threshold"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
}
