// Package db is the GORM-backed persistence layer of the portal. One
// Repository covers the clients, code_requests, job_postings,
// client_activities, job_applications and revoked_tokens tables.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	dbmodels "github.com/gartstein/staffing/internal/portal/db/models"
	"github.com/gartstein/staffing/internal/portal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver string
	// DSN, when set, is used verbatim instead of the discrete fields.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxOpenConns caps the connection pool. sqlite is always capped at 1.
	MaxOpenConns int
	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string
}

func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", DriverPostgres:
		dsn := c.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		dsn := c.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// NewRepository opens the database described by cfg and migrates the schema.
func NewRepository(cfg *Config) (*Repository, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.New(os.Stdout, "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	switch {
	case cfg.Driver == DriverSQLite:
		// Every in-memory connection is a separate database, and sqlite
		// serialises writers anyway.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	repo := &Repository{db: db}
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Migrate creates or updates every table the portal owns.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(
		&models.Client{},
		&models.ClientActivity{},
		&models.CodeRequest{},
		&models.JobPosting{},
		&models.JobApplication{},
		&dbmodels.RevokedToken{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// WithTransaction runs fn against a Repository bound to a single
// transaction. Nested calls use savepoints.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// translate maps GORM errors onto the portal's taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", e.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", e.ErrConflict, what)
	default:
		return err
	}
}
