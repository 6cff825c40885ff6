// Package report renders claims into spreadsheet exports
package report

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	claimsSheet = "Claims"
	stepsSheet  = "Approvals"
)

var claimsHeader = []interface{}{
	"Claim ID", "Employee", "Submitted", "Claim Date", "Category", "Description",
	"Merchant", "Amount", "Currency", "Rate", "Company Amount", "Company Currency",
	"Status", "Current Approver",
}

var stepsHeader = []interface{}{
	"Claim ID", "Position", "Approver", "Status", "Comment", "Decided At",
}

// ExcelExporter implements port.ClaimExporter as an xlsx workbook with one
// sheet of claims and one sheet of their approval steps
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export writes the claims to an in-memory xlsx file
func (e *ExcelExporter) Export(ctx context.Context, claims []*entity.Claim) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", claimsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(stepsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := e.setRow(f, claimsSheet, 1, claimsHeader); err != nil {
		return nil, err
	}
	if err := e.setRow(f, stepsSheet, 1, stepsHeader); err != nil {
		return nil, err
	}

	stepRow := 2
	for i, c := range claims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := []interface{}{
			c.ID,
			c.EmployeeID,
			c.SubmittedAt.Format("2006-01-02 15:04"),
			c.ClaimDate.Format("2006-01-02"),
			c.Category,
			c.Description,
			c.Merchant,
			c.Amount,
			c.Currency,
			c.ExchangeRate,
			c.AmountInCompanyCurrency,
			c.CompanyCurrency,
			string(c.Status),
			c.CurrentApproverID,
		}
		if err := e.setRow(f, claimsSheet, i+2, row); err != nil {
			return nil, err
		}

		for _, s := range c.Steps {
			decided := ""
			if s.DecidedAt != nil {
				decided = s.DecidedAt.Format("2006-01-02 15:04")
			}
			if err := e.setRow(f, stepsSheet, stepRow, []interface{}{
				c.ID, s.Position, s.ApproverID, string(s.Status), s.Comment, decided,
			}); err != nil {
				return nil, err
			}
			stepRow++
		}
	}

	if err := e.styleHeader(f); err != nil {
		e.logger.Warn("Failed to style export header", zap.Error(err))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Claims exported",
		zap.Int("claims", len(claims)),
		zap.Int("steps", stepRow-2),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func (e *ExcelExporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (e *ExcelExporter) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for sheet, width := range map[string]int{claimsSheet: len(claimsHeader), stepsSheet: len(stepsHeader)} {
		last, err := excelize.CoordinatesToCellName(width, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}
	return nil
}

var _ port.ClaimExporter = (*ExcelExporter)(nil)
