package dataset

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"wastewatch/internal"
)

var reCellGap = regexp.MustCompile(`\s{2,}|\t|\s*\|\s*`)

// ParsePDF recovers a table from the plain text of a PDF report. Cells are
// split on pipes, tabs, or runs of two-plus spaces; the first line that
// splits into three or more cells becomes the header, and later lines are
// kept only when they split to the same width. Best effort: report pages
// with prose around the table lose only the prose.
func ParsePDF(blob []byte) (internal.RawTable, error) {
	r, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return internal.RawTable{}, fmt.Errorf("open pdf: %w", err)
	}

	var table internal.RawTable
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}

		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			cells := splitLine(line)
			if table.Headers == nil {
				if len(cells) >= 3 {
					table.Headers = cells
				}
				continue
			}
			if len(cells) == len(table.Headers) {
				table.Rows = append(table.Rows, cells)
			}
		}
	}

	if table.Headers == nil || len(table.Rows) == 0 {
		return internal.RawTable{}, fmt.Errorf("no table recovered from pdf")
	}
	return validate(table)
}

func splitLine(line string) []string {
	parts := reCellGap.Split(strings.TrimSpace(line), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
