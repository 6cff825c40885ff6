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

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new approval policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a policy together with its approver sequence. Callers wrap
// it in a transaction so the sequence is never stored half-written.
func (r *PolicyRepository) Create(ctx context.Context, policy *entity.ApprovalPolicy) error {
	query := `
		INSERT INTO approval_policies (
			company_id, name, kind, percentage_threshold,
			specific_approver_id, manager_is_approver, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	policy.CreatedAt = time.Now().UTC()
	result, err := r.exec(ctx).ExecContext(ctx, query,
		policy.CompanyID,
		policy.Name,
		policy.Kind,
		policy.PercentageThreshold,
		policy.SpecificApproverID,
		policy.ManagerIsApprover,
		policy.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create policy", zap.String("company_id", policy.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create policy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	policy.ID = id

	seqQuery := `INSERT INTO approval_sequences (policy_id, position, approver_id) VALUES (?, ?, ?)`
	for _, s := range policy.Sequence {
		result, err := r.exec(ctx).ExecContext(ctx, seqQuery, policy.ID, s.Position, s.ApproverID)
		if err != nil {
			r.logger.Error("Failed to create policy sequence", zap.Int64("policy_id", policy.ID), zap.Error(err))
			return fmt.Errorf("failed to create policy sequence: %w", err)
		}
		seqID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		s.ID = seqID
		s.PolicyID = policy.ID
	}

	return nil
}

// GetByID retrieves a policy with its sequence. Returns nil when not found.
func (r *PolicyRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalPolicy, error) {
	query := `
		SELECT id, company_id, name, kind, percentage_threshold,
			specific_approver_id, manager_is_approver, created_at
		FROM approval_policies
		WHERE id = ?
	`
	return r.getOne(ctx, query, id)
}

// GetActiveByCompany returns the company's most recently created policy
func (r *PolicyRepository) GetActiveByCompany(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error) {
	query := `
		SELECT id, company_id, name, kind, percentage_threshold,
			specific_approver_id, manager_is_approver, created_at
		FROM approval_policies
		WHERE company_id = ?
		ORDER BY id DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, companyID)
}

// ListByCompany lists a company's policies, newest first
func (r *PolicyRepository) ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalPolicy, error) {
	query := `
		SELECT id, company_id, name, kind, percentage_threshold,
			specific_approver_id, manager_is_approver, created_at
		FROM approval_policies
		WHERE company_id = ?
		ORDER BY id DESC
	`

	rows, err := r.exec(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list policies", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	var policies []*entity.ApprovalPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	// close before loading sequences; a tx executor holds a single connection
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range policies {
		if p.Sequence, err = r.getSequence(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return policies, nil
}

func (r *PolicyRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.ApprovalPolicy, error) {
	p, err := scanPolicy(r.exec(ctx).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get policy", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	if p.Sequence, err = r.getSequence(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PolicyRepository) getSequence(ctx context.Context, policyID int64) ([]*entity.ApprovalSequence, error) {
	query := `
		SELECT id, policy_id, position, approver_id
		FROM approval_sequences
		WHERE policy_id = ?
		ORDER BY position ASC
	`

	rows, err := r.exec(ctx).QueryContext(ctx, query, policyID)
	if err != nil {
		r.logger.Error("Failed to get policy sequence", zap.Int64("policy_id", policyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get policy sequence: %w", err)
	}
	defer rows.Close()

	var seq []*entity.ApprovalSequence
	for rows.Next() {
		var s entity.ApprovalSequence
		if err := rows.Scan(&s.ID, &s.PolicyID, &s.Position, &s.ApproverID); err != nil {
			return nil, fmt.Errorf("failed to scan policy sequence: %w", err)
		}
		seq = append(seq, &s)
	}
	return seq, rows.Err()
}

func (r *PolicyRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

func scanPolicy(row rowScanner) (*entity.ApprovalPolicy, error) {
	var p entity.ApprovalPolicy
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.Kind,
		&p.PercentageThreshold,
		&p.SpecificApproverID,
		&p.ManagerIsApprover,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ port.PolicyRepository = (*PolicyRepository)(nil)
