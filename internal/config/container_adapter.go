package config

import (
	"strings"

	"github.com/garyjia/expense-approval/internal/container"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	supported := make([]string, 0, len(c.Currency.Supported))
	for _, code := range c.Currency.Supported {
		supported = append(supported, strings.ToUpper(strings.TrimSpace(code)))
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			RunMigrations:   c.Database.RunMigrations,
		},
		Currency: container.CurrencyConfig{
			BaseURL:   c.Currency.BaseURL,
			V6BaseURL: c.Currency.V6BaseURL,
			APIKey:    c.Currency.APIKey,
			Timeout:   c.Currency.Timeout,
			CacheTTL:  c.Currency.CacheTTL,
			Supported: supported,
		},
		Directory: container.DirectoryConfig{
			SeedPath: c.Directory.SeedPath,
		},
		Receipts: container.ReceiptsConfig{
			APIKey:         c.Receipts.APIKey,
			Model:          c.Receipts.Model,
			BaseURL:        c.Receipts.BaseURL,
			MaxUploadBytes: c.Receipts.MaxUploadBytes,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger.
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    "expense-approval",
	}
}
