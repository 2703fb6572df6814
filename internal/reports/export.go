// Package reports renders case data into downloadable report files.
package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"bank.com/mop/internal/cases"
)

const registerSheet = "Cases"

var registerHeader = []string{
	"Case ID", "Business Name", "Business Type", "Registration No",
	"Merchant Category", "Director", "Director Email", "Status",
	"Assigned To", "Priority", "Created", "Last Updated",
}

// WriteCaseRegister renders the given cases as an XLSX workbook with one
// row per case, newest activity first (the caller controls the order).
func WriteCaseRegister(w io.Writer, list []cases.Case) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), registerSheet)

	for col, title := range registerHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(registerSheet, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for row, c := range list {
		values := []any{
			c.ID, c.BusinessName, c.BusinessType, c.RegistrationNumber,
			c.MerchantCategory, c.DirectorName, c.DirectorEmail, c.Status,
			c.AssignedTo, c.Priority, formatStamp(c.CreatedAt), formatStamp(c.UpdatedAt),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(registerSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCaseDetail renders one case, including its full history, as an XLSX
// workbook with a summary sheet and a history sheet.
func WriteCaseDetail(w io.Writer, c cases.Case) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	f.SetSheetName(f.GetSheetName(0), summary)

	rows := [][2]any{
		{"Case ID", c.ID},
		{"Business Name", c.BusinessName},
		{"Business Type", c.BusinessType},
		{"Registration No", c.RegistrationNumber},
		{"Merchant Category", c.MerchantCategory},
		{"Business Address", c.BusinessAddress},
		{"Director", c.DirectorName},
		{"Director IC", c.DirectorIC},
		{"Director Phone", c.DirectorPhone},
		{"Director Email", c.DirectorEmail},
		{"Status", c.Status},
		{"Assigned To", c.AssignedTo},
		{"Priority", c.Priority},
		{"Created", formatStamp(c.CreatedAt)},
		{"Last Updated", formatStamp(c.UpdatedAt)},
	}
	for i, row := range rows {
		if err := f.SetCellValue(summary, fmt.Sprintf("A%d", i+1), row[0]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		if err := f.SetCellValue(summary, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	history := "History"
	if _, err := f.NewSheet(history); err != nil {
		return fmt.Errorf("history sheet: %w", err)
	}
	if err := f.SetCellValue(history, "A1", "Time"); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	if err := f.SetCellValue(history, "B1", "Action"); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	if err := f.SetCellValue(history, "C1", "Actor"); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	for i, h := range c.History {
		if err := f.SetCellValue(history, fmt.Sprintf("A%d", i+2), formatStamp(h.Time)); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
		if err := f.SetCellValue(history, fmt.Sprintf("B%d", i+2), h.Action); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
		if err := f.SetCellValue(history, fmt.Sprintf("C%d", i+2), h.Actor); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
