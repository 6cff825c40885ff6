package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/policy"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// PolicyInput configures a company approval policy. Approvers are listed in
// chain order; PercentageThreshold is a fraction in (0, 1].
type PolicyInput struct {
	Name                string            `json:"name" validate:"max=200"`
	Kind                entity.PolicyKind `json:"kind" validate:"required"`
	PercentageThreshold float64           `json:"percentage_threshold" validate:"gte=0,lte=1"`
	SpecificApproverID  string            `json:"specific_approver_id"`
	ManagerIsApprover   bool              `json:"manager_is_approver"`
	Approvers           []string          `json:"approvers" validate:"omitempty,dive,required"`
}

// PolicyService manages company approval policies. The most recently created
// policy is the one applied to new claims.
type PolicyService interface {
	Create(ctx context.Context, admin *entity.User, input PolicyInput) (*entity.ApprovalPolicy, error)
	List(ctx context.Context, admin *entity.User) ([]*entity.ApprovalPolicy, error)
	Active(ctx context.Context, actor *entity.User) (*entity.ApprovalPolicy, error)
}

type policyServiceImpl struct {
	policyRepo    port.PolicyRepository
	directoryRepo port.DirectoryRepository
	txManager     port.TransactionManager
	logger        Logger
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(
	policyRepo port.PolicyRepository,
	directoryRepo port.DirectoryRepository,
	txManager port.TransactionManager,
	logger Logger,
) PolicyService {
	return &policyServiceImpl{
		policyRepo:    policyRepo,
		directoryRepo: directoryRepo,
		txManager:     txManager,
		logger:        logger,
	}
}

// Create validates and stores a policy for the admin's company
func (s *policyServiceImpl) Create(ctx context.Context, admin *entity.User, input PolicyInput) (*entity.ApprovalPolicy, error) {
	if err := requireCapability(admin, entity.CapabilityConfigurePolicy); err != nil {
		return nil, err
	}

	input.Name = utils.SanitizeString(input.Name)
	input.Kind = entity.PolicyKind(strings.ToLower(strings.TrimSpace(string(input.Kind))))
	input.SpecificApproverID = strings.TrimSpace(input.SpecificApproverID)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !policy.IsKnownKind(input.Kind) {
		return nil, apperr.Validation("unknown policy kind %q", input.Kind)
	}

	p := &entity.ApprovalPolicy{
		CompanyID:           admin.CompanyID,
		Name:                input.Name,
		Kind:                input.Kind,
		PercentageThreshold: input.PercentageThreshold,
		SpecificApproverID:  input.SpecificApproverID,
		ManagerIsApprover:   input.ManagerIsApprover,
	}
	for i, id := range input.Approvers {
		p.Sequence = append(p.Sequence, &entity.ApprovalSequence{
			Position:   i + 1,
			ApproverID: strings.TrimSpace(id),
		})
	}
	if p.Name == "" {
		p.Name = string(p.Kind)
	}

	if err := policy.ValidatePolicy(p); err != nil {
		return nil, err
	}

	approvers := make([]string, 0, len(p.Sequence)+1)
	for _, seq := range p.Sequence {
		approvers = append(approvers, seq.ApproverID)
	}
	if p.SpecificApproverID != "" {
		approvers = append(approvers, p.SpecificApproverID)
	}
	if err := checkApprovers(ctx, s.directoryRepo, admin.CompanyID, approvers); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.policyRepo.Create(txCtx, p); err != nil {
			return fmt.Errorf("create policy: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create policy", "error", err, "company_id", admin.CompanyID)
		return nil, err
	}

	s.logger.Info("Policy created",
		"policy_id", p.ID,
		"company_id", p.CompanyID,
		"kind", string(p.Kind),
		"approvers", len(p.Sequence))

	return p, nil
}

// List returns the admin company's policies, newest first
func (s *policyServiceImpl) List(ctx context.Context, admin *entity.User) ([]*entity.ApprovalPolicy, error) {
	if err := requireCapability(admin, entity.CapabilityConfigurePolicy); err != nil {
		return nil, err
	}
	return s.policyRepo.ListByCompany(ctx, admin.CompanyID)
}

// Active returns the policy new claims of the actor's company resolve
// against, or nil when the default applies
func (s *policyServiceImpl) Active(ctx context.Context, actor *entity.User) (*entity.ApprovalPolicy, error) {
	if actor == nil {
		return nil, apperr.Forbidden("no authenticated user")
	}
	return s.policyRepo.GetActiveByCompany(ctx, actor.CompanyID)
}

// checkApprovers ensures every approver is an active user of the company
// whose role may decide claims
func checkApprovers(ctx context.Context, directory port.DirectoryRepository, companyID string, ids []string) error {
	for _, id := range ids {
		u, err := directory.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil || u.CompanyID != companyID {
			return apperr.Validation("approver %s is not a member of company %s", id, companyID)
		}
		if !u.Active {
			return apperr.Validation("approver %s is inactive", id)
		}
		if !u.Role.Can(entity.CapabilityDecideClaim) {
			return apperr.Validation("approver %s has role %s which cannot decide claims", id, u.Role)
		}
	}
	return nil
}
