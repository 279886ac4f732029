// Package config loads the portal settings from a YAML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/portal/db"
	"github.com/gartstein/staffing/internal/portal/redisstore"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when PORTAL_CONFIG is unset.
const DefaultPath = "config/portal.yaml"

const minSecretLength = 16

// Config struct for YAML configuration. Keys match the environment
// variables that override them.
type Config struct {
	HTTPPort int    `yaml:"HTTP_PORT"`
	AuthPort int    `yaml:"AUTH_PORT"`
	LogLevel string `yaml:"LOG_LEVEL"`

	DatabaseDriver   string `yaml:"DATABASE_DRIVER"`
	DatabaseURL      string `yaml:"DATABASE_URL"`
	DBHost           string `yaml:"DB_HOST"`
	DBPort           int    `yaml:"DB_PORT"`
	DBUser           string `yaml:"DB_USER"`
	DBPassword       string `yaml:"DB_PASSWORD"`
	DBName           string `yaml:"DB_NAME"`
	DBSSLMode        string `yaml:"DB_SSLMODE"`
	DBMaxOpenConns   int    `yaml:"DB_MAX_OPEN_CONNS"`
	DBLogLevel       string `yaml:"DB_LOG_LEVEL"`
	DBConnectRetries int    `yaml:"DB_CONNECT_RETRIES"`

	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"`
	Topic         string   `yaml:"TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP"`

	RedisAddr     string `yaml:"REDIS_ADDR"`
	RedisPassword string `yaml:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"REDIS_DB"`

	JWTSecret string        `yaml:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"TOKEN_TTL"`

	// AdminUsername and AdminPasswordHash are the credentials the token
	// issuer accepts. The hash is a bcrypt hash.
	AdminUsername     string `yaml:"ADMIN_USERNAME"`
	AdminPasswordHash string `yaml:"ADMIN_PASSWORD_HASH"`

	RateLimitRequests int           `yaml:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `yaml:"RATE_LIMIT_WINDOW"`

	RevocationPurgeInterval time.Duration `yaml:"REVOCATION_PURGE_INTERVAL"`
	ShutdownTimeout         time.Duration `yaml:"SHUTDOWN_TIMEOUT"`
}

// Path returns the config file location from PORTAL_CONFIG.
func Path() string {
	if p := os.Getenv("PORTAL_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads .env, then the YAML file at path, then applies environment
// overrides and defaults. A missing file at DefaultPath is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	setString("DATABASE_DRIVER", &c.DatabaseDriver)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("JWT_SECRET", &c.JWTSecret)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("ADMIN_USERNAME", &c.AdminUsername)
	setString("ADMIN_PASSWORD_HASH", &c.AdminPasswordHash)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}
	if err := setInt("HTTP_PORT", &c.HTTPPort); err != nil {
		return err
	}
	return setInt("AUTH_PORT", &c.AuthPort)
}

func (c *Config) applyDefaults() {
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.AuthPort == 0 {
		c.AuthPort = 8081
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = db.DriverPostgres
	}
	if c.DBPort == 0 {
		c.DBPort = 5432
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.DBLogLevel == "" {
		c.DBLogLevel = "warn"
	}
	if c.DBConnectRetries == 0 {
		c.DBConnectRetries = 5
	}
	if c.Topic == "" {
		c.Topic = "portal-events"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "portal-notifier"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 12 * time.Hour
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.RateLimitRequests == 0 {
		c.RateLimitRequests = 10
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.RevocationPurgeInterval == 0 {
		c.RevocationPurgeInterval = time.Hour
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Validate reports settings the processes cannot start with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.DatabaseDriver != db.DriverPostgres && c.DatabaseDriver != db.DriverSQLite {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver == db.DriverPostgres && c.DatabaseURL == "" && c.DBHost == "" {
		return fmt.Errorf("DATABASE_URL or DB_HOST is required for postgres")
	}
	if _, err := c.ZapLevel(); err != nil {
		return err
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindow < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// ZapLevel parses LOG_LEVEL.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Database returns the repository settings.
func (c *Config) Database() *db.Config {
	return &db.Config{
		Driver:       c.DatabaseDriver,
		DSN:          c.DatabaseURL,
		Host:         c.DBHost,
		Port:         c.DBPort,
		User:         c.DBUser,
		Password:     c.DBPassword,
		DBName:       c.DBName,
		SSLMode:      c.DBSSLMode,
		MaxOpenConns: c.DBMaxOpenConns,
		LogLevel:     c.DBLogLevel,
	}
}

// Redis returns the Redis settings and whether Redis is configured at all.
func (c *Config) Redis() (redisstore.Config, bool) {
	return redisstore.Config{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, c.RedisAddr != ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
