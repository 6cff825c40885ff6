package container

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/infrastructure/directory"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/currency"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/report"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.TxManager
}

// ExternalBundle holds the outbound collaborators. Scanner is nil when
// receipt scanning is not configured.
type ExternalBundle struct {
	Gateway  port.CurrencyGateway
	Scanner  port.ReceiptScanner
	Exporter port.ClaimExporter
}

// ProvideDatabase opens the SQLite database and, when enabled, applies the
// embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.Open(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if _, err := conn.Migrate(ctx, migrations.FS); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Conn:           conn,
		SqlDB:          conn.DB,
		TransactionMgr: sqlite.NewTxManager(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Claim:     repository.NewClaimRepository(sqlDB, logger),
		Step:      repository.NewStepRepository(sqlDB, logger),
		Policy:    repository.NewPolicyRepository(sqlDB, logger),
		Directory: repository.NewDirectoryRepository(sqlDB, logger),
	}, nil
}

// ProvideDirectorySeed applies the configured directory seed file, if any.
func ProvideDirectorySeed(ctx context.Context, cfg *DirectoryConfig, repos *RepositoryBundle, tx port.TransactionManager, logger *zap.Logger) error {
	if cfg == nil || cfg.SeedPath == "" {
		logger.Info("No directory seed configured")
		return nil
	}
	return directory.NewLoader(repos.Directory, tx, logger).LoadFile(ctx, cfg.SeedPath)
}

// ProvideExternal creates the currency gateway, the optional receipt
// scanner and the claims exporter.
func ProvideExternal(currencyCfg *CurrencyConfig, receiptsCfg *ReceiptsConfig, logger *zap.Logger) (*ExternalBundle, error) {
	if currencyCfg == nil || receiptsCfg == nil {
		return nil, fmt.Errorf("currency and receipts config are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{
		Gateway: currency.NewGateway(currency.Config{
			BaseURL:   currencyCfg.BaseURL,
			V6BaseURL: currencyCfg.V6BaseURL,
			APIKey:    currencyCfg.APIKey,
			Timeout:   currencyCfg.Timeout,
			CacheTTL:  currencyCfg.CacheTTL,
		}, logger.Named("currency")),
		Exporter: report.NewExcelExporter(logger.Named("report")),
	}

	if receiptsCfg.APIKey != "" {
		bundle.Scanner = openai.NewReceiptScanner(openai.Config{
			APIKey:  receiptsCfg.APIKey,
			Model:   receiptsCfg.Model,
			BaseURL: receiptsCfg.BaseURL,
		}, logger.Named("receipts"))
	} else {
		logger.Warn("Receipt scanning disabled: no API key configured")
	}

	return bundle, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Currencies []string
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.External == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	currencies := make([]string, 0, len(deps.Currencies))
	for _, c := range deps.Currencies {
		currencies = append(currencies, strings.ToUpper(strings.TrimSpace(c)))
	}

	return &ServiceBundle{
		Submission: service.NewSubmissionService(
			deps.Repos.Claim,
			deps.Repos.Step,
			deps.Repos.Policy,
			deps.Repos.Directory,
			deps.External.Gateway,
			deps.TxManager,
			currencies,
			logger,
		),
		Decision: service.NewDecisionService(
			deps.Repos.Claim,
			deps.Repos.Step,
			deps.TxManager,
			logger,
		),
		Policy: service.NewPolicyService(
			deps.Repos.Policy,
			deps.Repos.Directory,
			deps.TxManager,
			logger,
		),
		Claims: service.NewClaimService(
			deps.Repos.Claim,
			deps.Repos.Step,
			deps.External.Exporter,
			logger,
		),
	}, nil
}
