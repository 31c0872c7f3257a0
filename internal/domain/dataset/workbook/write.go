package workbook

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteSheet writes rows to a new single-sheet workbook at path. Values are
// written as-is so numbers stay numeric; time.Time values get a date format.
func WriteSheet(path, sheet string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else {
		sheet = "Sheet1"
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		for j, v := range row {
			if _, ok := v.(time.Time); !ok {
				continue
			}
			name, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellStyle(sheet, name, name, dateStyle); err != nil {
				return fmt.Errorf("failed to style %s: %w", name, err)
			}
		}
	}

	return f.SaveAs(path)
}
