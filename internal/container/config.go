// Package container provides dependency injection and lifecycle management
// for the expense approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Currency gateway configuration
	Currency CurrencyConfig

	// Directory seed configuration
	Directory DirectoryConfig

	// Receipt scanning configuration
	Receipts ReceiptsConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds how long a writer waits for the database lock
	BusyTimeout time.Duration

	// RunMigrations applies the embedded migrations on start
	RunMigrations bool
}

// CurrencyConfig holds exchange rate provider settings.
type CurrencyConfig struct {
	// BaseURL of the exchangerate-api compatible provider
	BaseURL string

	// V6BaseURL hosts the keyed v6 endpoint
	V6BaseURL string

	// APIKey selects the keyed v6 endpoint when set
	APIKey string

	// Timeout bounds a single provider call
	Timeout time.Duration

	// CacheTTL is how long a fetched rate table is reused
	CacheTTL time.Duration

	// Supported lists the currencies claims may be entered in
	Supported []string
}

// DirectoryConfig holds identity/org directory settings.
type DirectoryConfig struct {
	// SeedPath is a YAML file of companies and users applied on start.
	// Empty skips seeding.
	SeedPath string
}

// ReceiptsConfig holds receipt scanning settings.
type ReceiptsConfig struct {
	// APIKey for the vision model; empty disables scanning
	APIKey string

	// Model name
	Model string

	// BaseURL overrides the API endpoint
	BaseURL string

	// MaxUploadBytes caps receipt uploads
	MaxUploadBytes int64
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/expense.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			RunMigrations:   true,
		},
		Currency: CurrencyConfig{
			BaseURL:   "https://api.exchangerate-api.com",
			V6BaseURL: "https://v6.exchangerate-api.com",
			Timeout:   5 * time.Second,
			CacheTTL:  time.Hour,
			Supported: []string{"USD", "EUR", "GBP", "INR", "JPY", "CAD", "AUD"},
		},
		Receipts: ReceiptsConfig{
			Model:          "gpt-4o",
			MaxUploadBytes: 10 << 20,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}

	if c.Currency.Timeout <= 0 {
		return fmt.Errorf("currency.timeout must be positive")
	}
	if len(c.Currency.Supported) == 0 {
		return fmt.Errorf("currency.supported must list at least one currency")
	}
	for _, code := range c.Currency.Supported {
		if len(strings.TrimSpace(code)) != 3 {
			return fmt.Errorf("currency.supported: %q is not a 3-letter code", code)
		}
	}

	if c.Receipts.MaxUploadBytes <= 0 {
		return fmt.Errorf("receipts.max_upload_bytes must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	return nil
}
