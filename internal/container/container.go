package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/expense-approval/internal/interfaces/http"
	"github.com/garyjia/expense-approval/pkg/database"
)

// Container owns the database, outbound clients and services of one
// running instance.
type Container struct {
	config *Config
	logger *zap.Logger

	conn         *database.DB
	db           *sqlite.TxManager
	repositories *RepositoryBundle

	external *ExternalBundle

	services *ServiceBundle

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle holds the SQLite repositories.
type RepositoryBundle struct {
	Claim     port.ClaimRepository
	Step      port.StepRepository
	Policy    port.PolicyRepository
	Directory port.DirectoryRepository
}

// ServiceBundle holds the application services the HTTP layer calls.
type ServiceBundle struct {
	Submission service.SubmissionService
	Decision   service.DecisionService
	Policy     service.PolicyService
	Claims     service.ClaimService
}

// HealthStatus is the result of Health.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is one health check result.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg and returns an unstarted container.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("config is required")
	case logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

type stage struct {
	name string
	run  func(ctx context.Context) error
}

// Start wires the application in dependency order. If a stage fails the
// database is closed again and the container stays unstarted.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return fmt.Errorf("container has been closed")
	case c.ready.Load():
		return fmt.Errorf("container already started")
	}

	stages := []stage{
		{"database", c.initDatabase},
		{"directory seed", func(ctx context.Context) error {
			return ProvideDirectorySeed(ctx, &c.config.Directory, c.repositories, c.db, c.logger.Named("directory"))
		}},
		{"external clients", c.initExternal},
		{"services", c.initServices},
	}

	for _, st := range stages {
		if err := st.run(ctx); err != nil {
			c.closeDatabase()
			return fmt.Errorf("%s: %w", st.name, err)
		}
		c.logger.Debug("Container stage ready", zap.String("stage", st.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Bool("receipt_scanning", c.external.Scanner != nil),
		zap.Strings("currencies", c.config.Currency.Supported))
	return nil
}

// Close releases the database. It may be called once.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)

	var errs error
	if c.conn != nil {
		errs = multierr.Append(errs, c.conn.Close())
		c.conn = nil
	}
	if errs != nil {
		c.logger.Error("Container closed with errors", zap.Error(errs))
		return fmt.Errorf("close container: %w", errs)
	}
	c.logger.Info("Container closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health checks each component. Overall is false if any check fails; a
// disabled receipt scanner is reported but still healthy.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	checks := map[string]func() ComponentHealth{
		"database": func() ComponentHealth {
			if c.conn == nil {
				return ComponentHealth{Message: "not initialized"}
			}
			if err := c.conn.PingContext(ctx); err != nil {
				return ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
			}
			return ComponentHealth{Healthy: true}
		},
		"services": func() ComponentHealth {
			if c.services == nil {
				return ComponentHealth{Message: "not initialized"}
			}
			return ComponentHealth{Healthy: true}
		},
		"receipt_scanner": func() ComponentHealth {
			if c.external == nil || c.external.Scanner == nil {
				return ComponentHealth{Healthy: true, Message: "disabled"}
			}
			return ComponentHealth{Healthy: true}
		},
	}

	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth, len(checks))}
	for name, check := range checks {
		h := check()
		status.Components[name] = h
		status.Overall = status.Overall && h.Healthy
	}
	return status
}

// HTTPDependencies returns what the HTTP layer needs from the container.
func (c *Container) HTTPDependencies() httpapi.Dependencies {
	return httpapi.Dependencies{
		Submission: c.services.Submission,
		Decision:   c.services.Decision,
		Policy:     c.services.Policy,
		Claims:     c.services.Claims,
		Directory:  c.repositories.Directory,
		Gateway:    c.external.Gateway,
		Scanner:    c.external.Scanner,
		DB:         c.conn,
	}
}

// HTTPServerConfig returns the HTTP server settings.
func (c *Container) HTTPServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            c.config.Server.Port,
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		MaxUploadBytes:  c.config.Receipts.MaxUploadBytes,
	}
}

// HTTPLogger adapts the container logger to the HTTP layer.
func (c *Container) HTTPLogger() httpapi.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named("http")}
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn, c.db = bundle.Conn, bundle.TransactionMgr

	c.repositories, err = ProvideRepositories(bundle.SqlDB, c.logger)
	return err
}

func (c *Container) initExternal(context.Context) error {
	external, err := ProvideExternal(&c.config.Currency, &c.config.Receipts, c.logger)
	if err != nil {
		return err
	}
	c.external = external
	return nil
}

func (c *Container) initServices(context.Context) error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		External:   c.external,
		Currencies: c.config.Currency.Supported,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) closeDatabase() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("Failed to close database after aborted start", zap.Error(err))
	}
	c.conn = nil
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// External returns the outbound collaborators.
func (c *Container) External() *ExternalBundle {
	return c.external
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}
