package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/policy"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// DecisionInput is an approver's verdict on a claim
type DecisionInput struct {
	Decision entity.Decision `json:"decision" validate:"required"`
	Comment  string          `json:"comment" validate:"max=1000"`
}

// DecisionOutcome reports the state a decision left behind
type DecisionOutcome struct {
	ClaimID           int64              `json:"claim_id"`
	ClaimStatus       entity.ClaimStatus `json:"claim_status"`
	StepStatus        entity.StepStatus  `json:"step_status"`
	CurrentApproverID string             `json:"current_approver_id,omitempty"`
	Claim             *entity.Claim      `json:"claim"`
}

// DecisionService applies approver decisions to claims
type DecisionService interface {
	Decide(ctx context.Context, approver *entity.User, claimID int64, input DecisionInput) (*DecisionOutcome, error)
}

type decisionServiceImpl struct {
	claimRepo port.ClaimRepository
	stepRepo  port.StepRepository
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewDecisionService creates a new DecisionService
func NewDecisionService(
	claimRepo port.ClaimRepository,
	stepRepo port.StepRepository,
	txManager port.TransactionManager,
	logger Logger,
) DecisionService {
	return &decisionServiceImpl{
		claimRepo: claimRepo,
		stepRepo:  stepRepo,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// Decide records the approver's decision and advances the claim. Everything
// happens in one transaction; the step is claimed by a conditional update so
// concurrent or repeated calls for the same step see exactly one success.
func (s *decisionServiceImpl) Decide(ctx context.Context, approver *entity.User, claimID int64, input DecisionInput) (*DecisionOutcome, error) {
	if err := requireCapability(approver, entity.CapabilityDecideClaim); err != nil {
		return nil, err
	}

	input.Decision = entity.Decision(strings.ToLower(strings.TrimSpace(string(input.Decision))))
	input.Comment = utils.SanitizeString(input.Comment)
	if !input.Decision.IsValid() {
		return nil, apperr.Validation("decision must be %q or %q", entity.DecisionApproved, entity.DecisionRejected)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	trigger := workflow.TriggerFor(input.Decision)
	stepStatus, err := workflow.AdvanceStep(entity.StepStatusPending, trigger)
	if err != nil {
		return nil, err
	}

	var outcome *DecisionOutcome
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claim, err := s.claimRepo.GetByID(txCtx, claimID)
		if err != nil {
			return err
		}
		if claim == nil || claim.CompanyID != approver.CompanyID {
			return apperr.NotFound("claim %d not found", claimID)
		}
		if claim.IsTerminal() {
			return apperr.Conflict("claim %d is already %s", claimID, claim.Status)
		}

		at := s.now().UTC()
		claimed, err := s.stepRepo.Decide(txCtx, claimID, approver.ID, stepStatus, input.Comment, at)
		if err != nil {
			return err
		}
		if !claimed {
			return s.explainUnclaimedStep(txCtx, claimID, approver.ID)
		}

		steps, err := s.stepRepo.GetByClaimID(txCtx, claimID)
		if err != nil {
			return err
		}
		rule, err := policy.NewRule(claim.Rule)
		if err != nil {
			return fmt.Errorf("claim %d has an unusable rule: %w", claimID, err)
		}

		result := policy.Evaluate(rule, steps)
		if result.Status.IsTerminal() {
			if err := s.finalize(txCtx, claim, result.Status, at); err != nil {
				return err
			}
		} else if err := s.claimRepo.SetCurrentApprover(txCtx, claimID, result.CurrentApproverID); err != nil {
			return err
		}

		final, err := s.claimRepo.GetByID(txCtx, claimID)
		if err != nil {
			return err
		}
		if final.Steps, err = s.stepRepo.GetByClaimID(txCtx, claimID); err != nil {
			return err
		}

		outcome = &DecisionOutcome{
			ClaimID:           claimID,
			ClaimStatus:       final.Status,
			StepStatus:        stepStatus,
			CurrentApproverID: final.CurrentApproverID,
			Claim:             final,
		}
		return nil
	})
	if err != nil {
		if k := apperr.KindOf(err); k == "" {
			s.logger.Error("Failed to record decision", "error", err, "claim_id", claimID, "approver_id", approver.ID)
		} else {
			s.logger.Info("Decision refused", "reason", string(k), "claim_id", claimID, "approver_id", approver.ID, "error", err.Error())
		}
		return nil, err
	}

	s.logger.Info("Decision recorded",
		"claim_id", claimID,
		"approver_id", approver.ID,
		"decision", string(input.Decision),
		"claim_status", string(outcome.ClaimStatus),
		"current_approver_id", outcome.CurrentApproverID)

	return outcome, nil
}

// finalize moves the claim to a terminal status and supersedes whatever is
// still pending. A claim that is no longer pending is left untouched.
func (s *decisionServiceImpl) finalize(ctx context.Context, claim *entity.Claim, status entity.ClaimStatus, at time.Time) error {
	trigger := workflow.TriggerApprove
	if status == entity.ClaimStatusRejected {
		trigger = workflow.TriggerReject
	}
	if _, err := workflow.AdvanceClaim(claim.Status, trigger); err != nil {
		return err
	}

	changed, err := s.claimRepo.Finalize(ctx, claim.ID, status, at)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Warn("Claim already terminal, skipping finalize", "claim_id", claim.ID)
		return nil
	}

	superseded, err := s.stepRepo.SupersedePending(ctx, claim.ID, at)
	if err != nil {
		return err
	}

	s.logger.Info("Claim finalized", "claim_id", claim.ID, "status", string(status), "superseded_steps", superseded)
	return nil
}

// explainUnclaimedStep tells a repeated or late decision apart from a caller
// who is not on the chain at all
func (s *decisionServiceImpl) explainUnclaimedStep(ctx context.Context, claimID int64, approverID string) error {
	step, err := s.stepRepo.GetByClaimAndApprover(ctx, claimID, approverID)
	if err != nil {
		return err
	}
	if step == nil {
		return apperr.Forbidden("user %s is not an approver of claim %d", approverID, claimID)
	}
	return apperr.Conflict("step of %s on claim %d is already %s", approverID, claimID, step.Status)
}
