package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const claimColumns = `
	id, employee_id, company_id, amount, currency,
	amount_in_company_currency, company_currency, exchange_rate,
	category, description, merchant, claim_date, status,
	current_approver_id, policy_id, rule_kind, rule_percentage_threshold,
	rule_specific_approver_id, submitted_at, created_at, updated_at`

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a claim and assigns its ID
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	query := `
		INSERT INTO claims (
			employee_id, company_id, amount, currency,
			amount_in_company_currency, company_currency, exchange_rate,
			category, description, merchant, claim_date, status,
			current_approver_id, policy_id, rule_kind, rule_percentage_threshold,
			rule_specific_approver_id, submitted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if claim.SubmittedAt.IsZero() {
		claim.SubmittedAt = now
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now

	result, err := r.exec(ctx).ExecContext(ctx, query,
		claim.EmployeeID,
		claim.CompanyID,
		claim.Amount,
		claim.Currency,
		claim.AmountInCompanyCurrency,
		claim.CompanyCurrency,
		claim.ExchangeRate,
		claim.Category,
		claim.Description,
		claim.Merchant,
		claim.ClaimDate,
		claim.Status,
		claim.CurrentApproverID,
		nullInt64(claim.PolicyID),
		claim.Rule.Kind,
		claim.Rule.PercentageThreshold,
		claim.Rule.SpecificApproverID,
		claim.SubmittedAt,
		claim.CreatedAt,
		claim.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("employee_id", claim.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	claim.ID = id
	return nil
}

// CreateItems inserts line items for a claim
func (r *ClaimRepository) CreateItems(ctx context.Context, claimID int64, items []*entity.ClaimItem) error {
	query := `INSERT INTO claim_items (claim_id, name, amount) VALUES (?, ?, ?)`

	for _, item := range items {
		result, err := r.exec(ctx).ExecContext(ctx, query, claimID, item.Name, item.Amount)
		if err != nil {
			r.logger.Error("Failed to create claim item", zap.Int64("claim_id", claimID), zap.Error(err))
			return fmt.Errorf("failed to create claim item: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.ClaimID = claimID
	}
	return nil
}

// GetByID retrieves a claim by ID. Returns nil when it does not exist.
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.exec(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// GetItems retrieves the line items of a claim
func (r *ClaimRepository) GetItems(ctx context.Context, claimID int64) ([]*entity.ClaimItem, error) {
	query := `SELECT id, claim_id, name, amount FROM claim_items WHERE claim_id = ? ORDER BY id`

	rows, err := r.exec(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get claim items", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim items: %w", err)
	}
	defer rows.Close()

	var items []*entity.ClaimItem
	for rows.Next() {
		var item entity.ClaimItem
		if err := rows.Scan(&item.ID, &item.ClaimID, &item.Name, &item.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan claim item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// List retrieves claims matching the filter, newest first
func (r *ClaimRepository) List(ctx context.Context, filter port.ClaimFilter) ([]*entity.Claim, error) {
	var where []string
	var args []interface{}

	if filter.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.ManagerID != "" {
		where = append(where, "employee_id IN (SELECT id FROM users WHERE manager_id = ?)")
		args = append(args, filter.ManagerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryClaims(ctx, query, args...)
}

// ListPendingForApprover returns pending claims awaiting the approver's decision
func (r *ClaimRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE status = 'pending'
		AND id IN (SELECT claim_id FROM approval_steps WHERE approver_id = ? AND status = 'pending')
		ORDER BY submitted_at ASC, id ASC`

	return r.queryClaims(ctx, query, approverID)
}

// SetCurrentApprover updates the derived current approver of a pending claim
func (r *ClaimRepository) SetCurrentApprover(ctx context.Context, id int64, approverID string) error {
	query := `UPDATE claims SET current_approver_id = ?, updated_at = ? WHERE id = ? AND status = 'pending'`

	_, err := r.exec(ctx).ExecContext(ctx, query, approverID, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set current approver", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set current approver: %w", err)
	}
	return nil
}

// Finalize moves a pending claim to a terminal status
func (r *ClaimRepository) Finalize(ctx context.Context, id int64, status entity.ClaimStatus, at time.Time) (bool, error) {
	query := `UPDATE claims SET status = ?, current_approver_id = '', updated_at = ? WHERE id = ? AND status = 'pending'`

	result, err := r.exec(ctx).ExecContext(ctx, query, status, at, id)
	if err != nil {
		r.logger.Error("Failed to finalize claim", zap.Int64("id", id), zap.String("status", string(status)), zap.Error(err))
		return false, fmt.Errorf("failed to finalize claim: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *ClaimRepository) queryClaims(ctx context.Context, query string, args ...interface{}) ([]*entity.Claim, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func (r *ClaimRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var claim entity.Claim
	var policyID sql.NullInt64

	err := row.Scan(
		&claim.ID,
		&claim.EmployeeID,
		&claim.CompanyID,
		&claim.Amount,
		&claim.Currency,
		&claim.AmountInCompanyCurrency,
		&claim.CompanyCurrency,
		&claim.ExchangeRate,
		&claim.Category,
		&claim.Description,
		&claim.Merchant,
		&claim.ClaimDate,
		&claim.Status,
		&claim.CurrentApproverID,
		&policyID,
		&claim.Rule.Kind,
		&claim.Rule.PercentageThreshold,
		&claim.Rule.SpecificApproverID,
		&claim.SubmittedAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.PolicyID = policyID.Int64
	return &claim, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
