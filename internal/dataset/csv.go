package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"wastewatch/internal"
)

// ParseCSV reads CSV bytes into a RawTable. The first record is the header
// row; ragged records are tolerated and padded to the header width.
func ParseCSV(blob []byte) (internal.RawTable, error) {
	reader := csv.NewReader(bytes.NewReader(blob))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return internal.RawTable{}, fmt.Errorf("read csv header: %w", err)
	}

	table := internal.RawTable{Headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return internal.RawTable{}, fmt.Errorf("read csv row: %w", err)
		}
		if isEmptyRow(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return validate(table)
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
