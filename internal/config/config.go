// Package config loads storefront settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/storefront/pkg/logger"
)

// MinJWTSecretLength is the shortest accepted signing key.
const MinJWTSecretLength = 32

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port               int           `yaml:"port" env:"PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	CORSAllowedOrigins string        `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`

	// AuditLogFile, when set, receives admin requests as JSON lines.
	AuditLogFile string `yaml:"audit_log_file" env:"AUDIT_LOG_FILE"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER"` // memory, postgres or sqlite
	URL             string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
}

// AuthConfig controls token issuance and login throttling.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL       time.Duration `yaml:"token_ttl" env:"JWT_TTL"`
	BcryptCost     int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env:"AUTH_RATE_LIMIT_RPS"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env:"AUTH_RATE_LIMIT_BURST"`
}

// OrdersConfig holds order workflow policy.
type OrdersConfig struct {
	RestockOnCancel bool `yaml:"restock_on_cancel" env:"ORDER_RESTOCK_ON_CANCEL"`
}

// PaymentsConfig controls the mock payment step.
type PaymentsConfig struct {
	Delay time.Duration `yaml:"delay" env:"PAYMENT_DELAY"`
}

// UploadsConfig controls image storage.
type UploadsConfig struct {
	Dir        string `yaml:"dir" env:"UPLOAD_DIR"`
	MaxBytes   int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES"`
	MaxWidthPx int    `yaml:"max_width_px" env:"UPLOAD_MAX_WIDTH"`
}

// Config is the full storefront configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Auth     AuthConfig           `yaml:"auth"`
	Orders   OrdersConfig         `yaml:"orders"`
	Payments PaymentsConfig       `yaml:"payments"`
	Uploads  UploadsConfig        `yaml:"uploads"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:       time.Hour,
			BcryptCost:     10,
			RateLimitRPS:   1,
			RateLimitBurst: 5,
		},
		Payments: PaymentsConfig{Delay: time.Second},
		Uploads: UploadsConfig{
			Dir:        "uploads",
			MaxBytes:   5 << 20,
			MaxWidthPx: 1024,
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the YAML
// file named by CONFIG_FILE, the process environment (after .env is loaded).
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase resolves configuration like Load but only validates the
// database section. Operator tooling uses it where no signing key is needed.
func LoadDatabase() (DatabaseConfig, error) {
	cfg, err := load()
	if err != nil {
		return DatabaseConfig{}, err
	}
	if err := cfg.validateDatabase(); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

func load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Driver == "" {
		if c.Database.URL != "" {
			c.Database.Driver = "postgres"
		} else {
			c.Database.Driver = "memory"
		}
	}
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Payments.Delay < 0 {
		return errors.New("PAYMENT_DELAY must not be negative")
	}
	return nil
}

func (c Config) validateDatabase() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
