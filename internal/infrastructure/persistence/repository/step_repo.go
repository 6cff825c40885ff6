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

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new approval step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts the steps of a chain
func (r *StepRepository) CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps (claim_id, approver_id, position, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	for _, step := range steps {
		result, err := r.exec(ctx).ExecContext(ctx, query,
			step.ClaimID,
			step.ApproverID,
			step.Position,
			step.Status,
			now,
			now,
		)
		if err != nil {
			r.logger.Error("Failed to create approval step",
				zap.Int64("claim_id", step.ClaimID),
				zap.String("approver_id", step.ApproverID),
				zap.Error(err))
			return fmt.Errorf("failed to create approval step: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
		step.CreatedAt = now
		step.UpdatedAt = now
	}
	return nil
}

// GetByClaimID retrieves a claim's steps ordered by position then approver
func (r *StepRepository) GetByClaimID(ctx context.Context, claimID int64) ([]*entity.ApprovalStep, error) {
	query := `
		SELECT id, claim_id, approver_id, position, status, comment, decided_at, created_at, updated_at
		FROM approval_steps
		WHERE claim_id = ?
		ORDER BY position ASC, approver_id ASC
	`

	rows, err := r.exec(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get steps by claim", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetByClaimAndApprover retrieves one approver's step. Returns nil when the
// approver is not on the chain.
func (r *StepRepository) GetByClaimAndApprover(ctx context.Context, claimID int64, approverID string) (*entity.ApprovalStep, error) {
	query := `
		SELECT id, claim_id, approver_id, position, status, comment, decided_at, created_at, updated_at
		FROM approval_steps
		WHERE claim_id = ? AND approver_id = ?
	`

	step, err := scanStep(r.exec(ctx).QueryRowContext(ctx, query, claimID, approverID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step",
			zap.Int64("claim_id", claimID),
			zap.String("approver_id", approverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval step: %w", err)
	}
	return step, nil
}

// Decide records a decision only while the step is still pending
func (r *StepRepository) Decide(ctx context.Context, claimID int64, approverID string, status entity.StepStatus, comment string, at time.Time) (bool, error) {
	query := `
		UPDATE approval_steps
		SET status = ?, comment = ?, decided_at = ?, updated_at = ?
		WHERE claim_id = ? AND approver_id = ? AND status = 'pending'
	`

	result, err := r.exec(ctx).ExecContext(ctx, query, status, comment, at, at, claimID, approverID)
	if err != nil {
		r.logger.Error("Failed to decide step",
			zap.Int64("claim_id", claimID),
			zap.String("approver_id", approverID),
			zap.Error(err))
		return false, fmt.Errorf("failed to decide approval step: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SupersedePending closes every still-pending step of a claim
func (r *StepRepository) SupersedePending(ctx context.Context, claimID int64, at time.Time) (int64, error) {
	query := `
		UPDATE approval_steps
		SET status = 'superseded', updated_at = ?
		WHERE claim_id = ? AND status = 'pending'
	`

	result, err := r.exec(ctx).ExecContext(ctx, query, at, claimID)
	if err != nil {
		r.logger.Error("Failed to supersede pending steps", zap.Int64("claim_id", claimID), zap.Error(err))
		return 0, fmt.Errorf("failed to supersede pending steps: %w", err)
	}
	return result.RowsAffected()
}

func (r *StepRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

func scanStep(row rowScanner) (*entity.ApprovalStep, error) {
	var step entity.ApprovalStep
	var decidedAt sql.NullTime

	err := row.Scan(
		&step.ID,
		&step.ClaimID,
		&step.ApproverID,
		&step.Position,
		&step.Status,
		&step.Comment,
		&decidedAt,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		step.DecidedAt = &decidedAt.Time
	}
	return &step, nil
}

var _ port.StepRepository = (*StepRepository)(nil)
