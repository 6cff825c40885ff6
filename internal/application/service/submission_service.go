package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/policy"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// SubmitClaimInput is a new expense claim as entered by an employee
type SubmitClaimInput struct {
	Amount      float64          `json:"amount" validate:"gt=0"`
	Currency    string           `json:"currency" validate:"required,currency_code"`
	Category    string           `json:"category" validate:"required"`
	Description string           `json:"description" validate:"required,max=1000"`
	Merchant    string           `json:"merchant" validate:"max=200"`
	ClaimDate   string           `json:"claim_date" validate:"omitempty,datetime=2006-01-02"`
	Items       []ClaimItemInput `json:"items" validate:"omitempty,dive"`
}

// ClaimItemInput is an optional line item of a new claim
type ClaimItemInput struct {
	Name   string  `json:"name" validate:"required,max=200"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

// SubmissionService accepts new claims and materializes their approval chain
type SubmissionService interface {
	Submit(ctx context.Context, employee *entity.User, input SubmitClaimInput) (*entity.Claim, error)
}

type submissionServiceImpl struct {
	claimRepo     port.ClaimRepository
	stepRepo      port.StepRepository
	policyRepo    port.PolicyRepository
	directoryRepo port.DirectoryRepository
	gateway       port.CurrencyGateway
	txManager     port.TransactionManager
	currencies    map[string]bool
	logger        Logger
	now           func() time.Time
}

// NewSubmissionService creates a new SubmissionService. supportedCurrencies
// bounds the currencies a claim may be entered in.
func NewSubmissionService(
	claimRepo port.ClaimRepository,
	stepRepo port.StepRepository,
	policyRepo port.PolicyRepository,
	directoryRepo port.DirectoryRepository,
	gateway port.CurrencyGateway,
	txManager port.TransactionManager,
	supportedCurrencies []string,
	logger Logger,
) SubmissionService {
	currencies := make(map[string]bool, len(supportedCurrencies))
	for _, c := range supportedCurrencies {
		currencies[strings.ToUpper(c)] = true
	}

	return &submissionServiceImpl{
		claimRepo:     claimRepo,
		stepRepo:      stepRepo,
		policyRepo:    policyRepo,
		directoryRepo: directoryRepo,
		gateway:       gateway,
		txManager:     txManager,
		currencies:    currencies,
		logger:        logger,
		now:           time.Now,
	}
}

// Submit validates the claim, converts it into the company currency and
// stores it with its pending approval steps in one transaction
func (s *submissionServiceImpl) Submit(ctx context.Context, employee *entity.User, input SubmitClaimInput) (*entity.Claim, error) {
	if err := requireCapability(employee, entity.CapabilitySubmitClaim); err != nil {
		return nil, err
	}

	normalizeSubmission(&input)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !entity.IsValidCategory(input.Category) {
		return nil, apperr.Validation("category must be one of [%s]", strings.Join(entity.Categories, ", "))
	}
	if !s.currencies[input.Currency] {
		return nil, apperr.Validation("currency %s is not supported", input.Currency)
	}

	now := s.now().UTC()
	claimDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if input.ClaimDate != "" {
		// format already checked by the datetime tag
		claimDate, _ = time.Parse("2006-01-02", input.ClaimDate)
	}

	company, err := s.directoryRepo.GetCompany(ctx, employee.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, apperr.NotFound("company %s not found", employee.CompanyID)
	}

	active, err := s.policyRepo.GetActiveByCompany(ctx, employee.CompanyID)
	if err != nil {
		return nil, err
	}
	chain, err := policy.Resolve(employee, active)
	if err != nil {
		return nil, err
	}
	// the directory may have changed since the policy was configured
	if err := checkApprovers(ctx, s.directoryRepo, employee.CompanyID, chain.ApproverIDs); err != nil {
		return nil, err
	}

	rate := s.rate(ctx, input.Currency, company.Currency)

	claim := &entity.Claim{
		EmployeeID:              employee.ID,
		CompanyID:               employee.CompanyID,
		Amount:                  input.Amount,
		Currency:                input.Currency,
		AmountInCompanyCurrency: roundCents(input.Amount * rate),
		CompanyCurrency:         company.Currency,
		ExchangeRate:            rate,
		Category:                input.Category,
		Description:             input.Description,
		Merchant:                input.Merchant,
		ClaimDate:               claimDate,
		Status:                  entity.ClaimStatusPending,
		CurrentApproverID:       chain.ApproverIDs[0],
		PolicyID:                chain.PolicyID,
		Rule:                    chain.Completion,
		SubmittedAt:             now,
	}

	items := make([]*entity.ClaimItem, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, &entity.ClaimItem{Name: it.Name, Amount: it.Amount})
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.claimRepo.Create(txCtx, claim); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		if len(items) > 0 {
			if err := s.claimRepo.CreateItems(txCtx, claim.ID, items); err != nil {
				return fmt.Errorf("create claim items: %w", err)
			}
		}

		steps := chain.Steps(claim.ID)
		if err := s.stepRepo.CreateBatch(txCtx, steps); err != nil {
			return fmt.Errorf("create approval steps: %w", err)
		}
		claim.Steps = steps
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit claim", "error", err, "employee_id", employee.ID)
		return nil, err
	}
	if len(items) > 0 {
		claim.Items = items
	}

	s.logger.Info("Claim submitted",
		"claim_id", claim.ID,
		"employee_id", employee.ID,
		"amount", claim.Amount,
		"currency", claim.Currency,
		"company_amount", claim.AmountInCompanyCurrency,
		"approvers", len(chain.ApproverIDs),
		"rule", string(chain.Rule.Kind()))

	return claim, nil
}

// rate never fails: an unavailable gateway means the claim is stored at 1:1
func (s *submissionServiceImpl) rate(ctx context.Context, from, to string) float64 {
	if from == to {
		return 1
	}

	rate, err := s.gateway.Rate(ctx, from, to)
	if err != nil || rate <= 0 {
		s.logger.Warn("Exchange rate unavailable, using 1", "from", from, "to", to, "error", err)
		return 1
	}
	return rate
}

func normalizeSubmission(in *SubmitClaimInput) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Category = strings.TrimSpace(in.Category)
	in.Description = utils.SanitizeString(in.Description)
	in.Merchant = utils.SanitizeString(in.Merchant)
	in.ClaimDate = strings.TrimSpace(in.ClaimDate)
	for i := range in.Items {
		in.Items[i].Name = utils.SanitizeString(in.Items[i].Name)
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// requireCapability checks the actor is an active directory user holding c
func requireCapability(actor *entity.User, c entity.Capability) error {
	if actor == nil {
		return apperr.Forbidden("no authenticated user")
	}
	if !actor.Active {
		return apperr.Forbidden("user %s is inactive", actor.ID)
	}
	if !actor.Role.Can(c) {
		return apperr.Forbidden("role %s may not %s", actor.Role, c)
	}
	return nil
}
