package service

import (
	"context"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ClaimService answers claim queries scoped to the caller's role
type ClaimService interface {
	ListMine(ctx context.Context, actor *entity.User) ([]*entity.Claim, error)
	ListPendingApprovals(ctx context.Context, actor *entity.User) ([]*entity.Claim, error)
	// List returns the whole company for admins and direct reports for managers
	List(ctx context.Context, actor *entity.User, status entity.ClaimStatus) ([]*entity.Claim, error)
	Get(ctx context.Context, actor *entity.User, id int64) (*entity.Claim, error)
	Export(ctx context.Context, actor *entity.User) ([]byte, error)
}

type claimServiceImpl struct {
	claimRepo port.ClaimRepository
	stepRepo  port.StepRepository
	exporter  port.ClaimExporter
	logger    Logger
}

// NewClaimService creates a new ClaimService
func NewClaimService(
	claimRepo port.ClaimRepository,
	stepRepo port.StepRepository,
	exporter port.ClaimExporter,
	logger Logger,
) ClaimService {
	return &claimServiceImpl{
		claimRepo: claimRepo,
		stepRepo:  stepRepo,
		exporter:  exporter,
		logger:    logger,
	}
}

// ListMine returns the actor's own claims with items and steps
func (s *claimServiceImpl) ListMine(ctx context.Context, actor *entity.User) ([]*entity.Claim, error) {
	if actor == nil {
		return nil, apperr.Forbidden("no authenticated user")
	}

	claims, err := s.claimRepo.List(ctx, port.ClaimFilter{EmployeeID: actor.ID})
	if err != nil {
		return nil, err
	}
	return claims, s.hydrate(ctx, claims)
}

// ListPendingApprovals returns pending claims where the actor still has a
// pending step
func (s *claimServiceImpl) ListPendingApprovals(ctx context.Context, actor *entity.User) ([]*entity.Claim, error) {
	if err := requireCapability(actor, entity.CapabilityDecideClaim); err != nil {
		return nil, err
	}

	claims, err := s.claimRepo.ListPendingForApprover(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return claims, s.hydrate(ctx, claims)
}

func (s *claimServiceImpl) List(ctx context.Context, actor *entity.User, status entity.ClaimStatus) ([]*entity.Claim, error) {
	if actor == nil {
		return nil, apperr.Forbidden("no authenticated user")
	}
	filter := port.ClaimFilter{CompanyID: actor.CompanyID, Status: status}

	switch {
	case actor.Role.Can(entity.CapabilityViewCompanyClaims):
	case actor.Role.Can(entity.CapabilityViewTeamClaims):
		filter.ManagerID = actor.ID
	default:
		return nil, apperr.Forbidden("role %s may not list team claims", actor.Role)
	}

	if status != "" && status != entity.ClaimStatusPending && !status.IsTerminal() {
		return nil, apperr.Validation("unknown status %q", status)
	}

	claims, err := s.claimRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return claims, s.hydrate(ctx, claims)
}

// Get returns a claim visible to the actor: its owner, anyone on its chain,
// or an admin of the same company
func (s *claimServiceImpl) Get(ctx context.Context, actor *entity.User, id int64) (*entity.Claim, error) {
	if actor == nil {
		return nil, apperr.Forbidden("no authenticated user")
	}
	claim, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil || claim.CompanyID != actor.CompanyID {
		return nil, apperr.NotFound("claim %d not found", id)
	}

	if err := s.hydrate(ctx, []*entity.Claim{claim}); err != nil {
		return nil, err
	}

	if claim.EmployeeID == actor.ID || actor.Role.Can(entity.CapabilityViewCompanyClaims) {
		return claim, nil
	}
	for _, step := range claim.Steps {
		if step.ApproverID == actor.ID {
			return claim, nil
		}
	}
	return nil, apperr.Forbidden("user %s may not view claim %d", actor.ID, id)
}

// Export renders every claim of the actor's company as a spreadsheet
func (s *claimServiceImpl) Export(ctx context.Context, actor *entity.User) ([]byte, error) {
	if err := requireCapability(actor, entity.CapabilityViewCompanyClaims); err != nil {
		return nil, err
	}

	claims, err := s.claimRepo.List(ctx, port.ClaimFilter{CompanyID: actor.CompanyID})
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, claims); err != nil {
		return nil, err
	}

	data, err := s.exporter.Export(ctx, claims)
	if err != nil {
		s.logger.Error("Failed to export claims", "error", err, "company_id", actor.CompanyID)
		return nil, err
	}

	s.logger.Info("Claims exported", "company_id", actor.CompanyID, "claims", len(claims), "requested_by", actor.ID)
	return data, nil
}

func (s *claimServiceImpl) hydrate(ctx context.Context, claims []*entity.Claim) error {
	for _, c := range claims {
		items, err := s.claimRepo.GetItems(ctx, c.ID)
		if err != nil {
			return err
		}
		steps, err := s.stepRepo.GetByClaimID(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Items = items
		c.Steps = steps
	}
	return nil
}
