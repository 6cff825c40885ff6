package repository

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClaimRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	repo := NewClaimRepository(db, zap.NewNop())
	ctx := context.Background()

	claim := newClaim("emp")
	claim.Rule = entity.CompletionRule{Kind: entity.PolicyKindHybrid, PercentageThreshold: 0.6, SpecificApproverID: "admin"}
	require.NoError(t, repo.Create(ctx, claim))
	require.NotZero(t, claim.ID)

	items := []*entity.ClaimItem{{Name: "Fare", Amount: 90}, {Name: "Tip", Amount: 10}}
	require.NoError(t, repo.CreateItems(ctx, claim.ID, items))
	assert.NotZero(t, items[0].ID)

	got, err := repo.GetByID(ctx, claim.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "emp", got.EmployeeID)
	assert.Equal(t, 8300.0, got.AmountInCompanyCurrency)
	assert.Equal(t, entity.ClaimStatusPending, got.Status)
	assert.Equal(t, claim.Rule, got.Rule)
	assert.Zero(t, got.PolicyID)
	assert.True(t, got.ClaimDate.Equal(claim.ClaimDate))

	gotItems, err := repo.GetItems(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, gotItems, 2)
	assert.Equal(t, "Fare", gotItems[0].Name)
}

func TestClaimRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db, zap.NewNop())

	got, err := repo.GetByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimRepository_FinalizeOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	repo := NewClaimRepository(db, zap.NewNop())
	ctx := context.Background()

	claim := newClaim("emp")
	require.NoError(t, repo.Create(ctx, claim))

	ok, err := repo.Finalize(ctx, claim.ID, entity.ClaimStatusApproved, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Finalize(ctx, claim.ID, entity.ClaimStatusRejected, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "terminal claim must not change status")

	got, err := repo.GetByID(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusApproved, got.Status)
	assert.Empty(t, got.CurrentApproverID)
}

func TestClaimRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	repo := NewClaimRepository(db, zap.NewNop())
	ctx := context.Background()

	c1 := newClaim("emp")
	c2 := newClaim("emp2")
	c3 := newClaim("emp")
	for _, c := range []*entity.Claim{c1, c2, c3} {
		require.NoError(t, repo.Create(ctx, c))
	}
	_, err := repo.Finalize(ctx, c3.ID, entity.ClaimStatusRejected, time.Now().UTC())
	require.NoError(t, err)

	mine, err := repo.List(ctx, port.ClaimFilter{EmployeeID: "emp"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	team, err := repo.List(ctx, port.ClaimFilter{ManagerID: "admin"})
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, c2.ID, team[0].ID)

	pending, err := repo.List(ctx, port.ClaimFilter{CompanyID: "acme", Status: entity.ClaimStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	page, err := repo.List(ctx, port.ClaimFilter{CompanyID: "acme", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestClaimRepository_ListPendingForApprover(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	claims := NewClaimRepository(db, zap.NewNop())
	steps := NewStepRepository(db, zap.NewNop())
	ctx := context.Background()

	open := newClaim("emp")
	decided := newClaim("emp")
	for _, c := range []*entity.Claim{open, decided} {
		require.NoError(t, claims.Create(ctx, c))
		require.NoError(t, steps.CreateBatch(ctx, []*entity.ApprovalStep{
			{ClaimID: c.ID, ApproverID: "mgr", Position: 1, Status: entity.StepStatusPending},
		}))
	}
	_, err := steps.Decide(ctx, decided.ID, "mgr", entity.StepStatusApproved, "", time.Now().UTC())
	require.NoError(t, err)

	got, err := claims.ListPendingForApprover(ctx, "mgr")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
}
