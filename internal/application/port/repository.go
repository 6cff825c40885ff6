package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ClaimFilter narrows claim listings. Zero values match everything.
type ClaimFilter struct {
	CompanyID  string
	EmployeeID string
	// ManagerID selects claims submitted by the manager's direct reports
	ManagerID string
	Status    entity.ClaimStatus
	Limit     int
	Offset    int
}

// ClaimRepository defines persistence operations for Claim and its items
type ClaimRepository interface {
	Create(ctx context.Context, claim *entity.Claim) error
	CreateItems(ctx context.Context, claimID int64, items []*entity.ClaimItem) error
	GetByID(ctx context.Context, id int64) (*entity.Claim, error)
	GetItems(ctx context.Context, claimID int64) ([]*entity.ClaimItem, error)
	List(ctx context.Context, filter ClaimFilter) ([]*entity.Claim, error)

	// ListPendingForApprover returns pending claims where approverID holds a
	// pending step, oldest first.
	ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.Claim, error)

	// SetCurrentApprover updates the derived current approver of a pending claim
	SetCurrentApprover(ctx context.Context, id int64, approverID string) error

	// Finalize moves a pending claim to a terminal status. It reports false
	// when the claim was no longer pending.
	Finalize(ctx context.Context, id int64, status entity.ClaimStatus, at time.Time) (bool, error)
}

// StepRepository defines persistence operations for ApprovalStep
type StepRepository interface {
	CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error
	GetByClaimID(ctx context.Context, claimID int64) ([]*entity.ApprovalStep, error)
	GetByClaimAndApprover(ctx context.Context, claimID int64, approverID string) (*entity.ApprovalStep, error)

	// Decide records a decision on the approver's step only while it is
	// pending. It reports false when no pending step matched.
	Decide(ctx context.Context, claimID int64, approverID string, status entity.StepStatus, comment string, at time.Time) (bool, error)

	// SupersedePending closes every still-pending step of a claim
	SupersedePending(ctx context.Context, claimID int64, at time.Time) (int64, error)
}

// PolicyRepository defines persistence operations for ApprovalPolicy
type PolicyRepository interface {
	Create(ctx context.Context, policy *entity.ApprovalPolicy) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalPolicy, error)

	// GetActiveByCompany returns the company's most recently created policy,
	// or nil when none is configured.
	GetActiveByCompany(ctx context.Context, companyID string) (*entity.ApprovalPolicy, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalPolicy, error)
}

// DirectoryRepository is the read side of the organization directory
type DirectoryRepository interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
	GetCompany(ctx context.Context, id string) (*entity.Company, error)
	ListReports(ctx context.Context, managerID string) ([]*entity.User, error)
	UpsertCompany(ctx context.Context, company *entity.Company) error
	UpsertUser(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
