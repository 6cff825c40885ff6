package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background(), migrations.FS)
	require.NoError(t, err)
	return db.DB
}

func seedDirectory(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	dir := NewDirectoryRepository(db, zap.NewNop())

	require.NoError(t, dir.UpsertCompany(ctx, &entity.Company{ID: "acme", Name: "Acme", Currency: "INR"}))
	for _, u := range []*entity.User{
		{ID: "admin", CompanyID: "acme", Name: "Ada", Role: entity.RoleAdmin, Active: true},
		{ID: "mgr", CompanyID: "acme", Name: "Max", Role: entity.RoleManager, ManagerID: "admin", Active: true},
		{ID: "emp", CompanyID: "acme", Name: "Eve", Role: entity.RoleEmployee, ManagerID: "mgr", Active: true},
		{ID: "emp2", CompanyID: "acme", Name: "Eli", Role: entity.RoleEmployee, ManagerID: "admin", Active: true},
	} {
		require.NoError(t, dir.UpsertUser(ctx, u))
	}
}

func newClaim(employeeID string) *entity.Claim {
	return &entity.Claim{
		EmployeeID:              employeeID,
		CompanyID:               "acme",
		Amount:                  100,
		Currency:                "USD",
		AmountInCompanyCurrency: 8300,
		CompanyCurrency:         "INR",
		ExchangeRate:            83,
		Category:                entity.CategoryTravel,
		Description:             "Taxi to airport",
		ClaimDate:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:                  entity.ClaimStatusPending,
		CurrentApproverID:       "mgr",
		Rule:                    entity.CompletionRule{Kind: entity.PolicyKindSequential},
	}
}
