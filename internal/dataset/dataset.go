package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"wastewatch/internal"
)

// Parse loads a raw tabular dataset from uploaded bytes. The format comes
// from the filename extension; anything unrecognized is tried as CSV,
// which covers extension-less uploads.
func Parse(name string, blob []byte) (internal.RawTable, internal.DatasetSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		table, err := ParseXLSX(blob)
		return table, internal.SourceXLSX, err
	case ".html", ".htm":
		table, err := ParseHTMLTable(string(blob))
		return table, internal.SourceHTML, err
	case ".pdf":
		table, err := ParsePDF(blob)
		return table, internal.SourcePDF, err
	default:
		table, err := ParseCSV(blob)
		return table, internal.SourceCSV, err
	}
}

func validate(table internal.RawTable) (internal.RawTable, error) {
	if len(table.Headers) == 0 {
		return internal.RawTable{}, fmt.Errorf("dataset has no header row")
	}
	// Pad ragged rows so column indexes stay aligned with headers.
	for i, row := range table.Rows {
		for len(row) < len(table.Headers) {
			row = append(row, "")
		}
		table.Rows[i] = row[:len(table.Headers)]
	}
	return table, nil
}
