package dataset

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"wastewatch/internal"
)

// ParseXLSX reads the first sheet with at least a header row and one data
// row. Reports exported from spreadsheets often carry empty leading sheets.
func ParseXLSX(blob []byte) (internal.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return internal.RawTable{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var table internal.RawTable
		for _, row := range rows {
			if isEmptyRow(row) {
				continue
			}
			if table.Headers == nil {
				table.Headers = row
				continue
			}
			table.Rows = append(table.Rows, row)
		}
		if table.Headers != nil && len(table.Rows) > 0 {
			return validate(table)
		}
	}

	return internal.RawTable{}, fmt.Errorf("no tabular sheet found in workbook")
}
