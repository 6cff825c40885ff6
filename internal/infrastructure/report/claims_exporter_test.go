package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExcelExporter_Export(t *testing.T) {
	decided := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	claims := []*entity.Claim{
		{
			ID:                      7,
			EmployeeID:              "carol",
			Amount:                  100,
			Currency:                "USD",
			ExchangeRate:            83,
			AmountInCompanyCurrency: 8300,
			CompanyCurrency:         "INR",
			Category:                entity.CategoryTravel,
			Description:             "Taxi",
			ClaimDate:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			SubmittedAt:             time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
			Status:                  entity.ClaimStatusApproved,
			Steps: []*entity.ApprovalStep{
				{Position: 1, ApproverID: "bob", Status: entity.StepStatusApproved, Comment: "ok", DecidedAt: &decided},
				{Position: 2, ApproverID: "alice", Status: entity.StepStatusSuperseded},
			},
		},
	}

	data, err := NewExcelExporter(zap.NewNop()).Export(context.Background(), claims)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{claimsSheet, stepsSheet}, f.GetSheetList())

	rows, err := f.GetRows(claimsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Claim ID", rows[0][0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "carol", rows[1][1])
	assert.Equal(t, "8300", rows[1][10])
	assert.Equal(t, "approved", rows[1][12])

	steps, err := f.GetRows(stepsSheet)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "bob", steps[1][2])
	assert.Equal(t, "2024-03-02 09:30", steps[1][5])
	assert.Equal(t, "superseded", steps[2][3])
}

func TestExcelExporter_EmptyExportHasHeaders(t *testing.T) {
	data, err := NewExcelExporter(zap.NewNop()).Export(context.Background(), nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(claimsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
