package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DirectoryRepository implements port.DirectoryRepository on the local
// users and companies tables
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) port.DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetUser retrieves a user by ID. Returns nil when not found.
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT id, company_id, name, email, role, manager_id, active, created_at
		FROM users
		WHERE id = ?
	`

	user, err := scanUser(r.exec(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetCompany retrieves a company by ID. Returns nil when not found.
func (r *DirectoryRepository) GetCompany(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT id, name, currency, created_at FROM companies WHERE id = ?`

	var c entity.Company
	err := r.exec(ctx).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Currency, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// ListReports returns the manager's direct reports
func (r *DirectoryRepository) ListReports(ctx context.Context, managerID string) ([]*entity.User, error) {
	query := `
		SELECT id, company_id, name, email, role, manager_id, active, created_at
		FROM users
		WHERE manager_id = ?
		ORDER BY id
	`

	rows, err := r.exec(ctx).QueryContext(ctx, query, managerID)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.String("manager_id", managerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpsertCompany inserts or updates a company
func (r *DirectoryRepository) UpsertCompany(ctx context.Context, c *entity.Company) error {
	query := `
		INSERT INTO companies (id, name, currency, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency = excluded.currency
	`

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := r.exec(ctx).ExecContext(ctx, query, c.ID, c.Name, c.Currency, c.CreatedAt); err != nil {
		r.logger.Error("Failed to upsert company", zap.String("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

// UpsertUser inserts or updates a user
func (r *DirectoryRepository) UpsertUser(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (id, company_id, name, email, role, manager_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			manager_id = excluded.manager_id,
			active = excluded.active
	`

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.exec(ctx).ExecContext(ctx, query,
		u.ID,
		u.CompanyID,
		u.Name,
		u.Email,
		u.Role,
		nullString(u.ManagerID),
		u.Active,
		u.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *DirectoryRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var managerID sql.NullString

	err := row.Scan(
		&u.ID,
		&u.CompanyID,
		&u.Name,
		&u.Email,
		&u.Role,
		&managerID,
		&u.Active,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ManagerID = managerID.String
	return &u, nil
}

var _ port.DirectoryRepository = (*DirectoryRepository)(nil)
