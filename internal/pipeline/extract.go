package pipeline

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"

	"wastewatch/internal"
	"wastewatch/internal/dataset"
)

// ExtractedTable is one raw dataset recovered from a mail message, either
// an attachment or a table inlined in the HTML body.
type ExtractedTable struct {
	Name   string
	Source internal.DatasetSource
	Table  internal.RawTable
}

// ExtractTablesFromMailRaw parses a raw RFC 5322 message and pulls every
// tabular payload out of it. Attachments that fail to parse are skipped;
// a report mail usually carries one good spreadsheet among signature
// images and logos.
func ExtractTablesFromMailRaw(raw []byte) ([]ExtractedTable, string, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, err
	}

	tables := make([]ExtractedTable, 0)
	if env.HTML != "" {
		if table, err := dataset.ParseHTMLTable(env.HTML); err == nil {
			tables = append(tables, ExtractedTable{Name: "inline-table", Source: internal.SourceHTML, Table: table})
		}
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		if !hasTabularExt(filename) {
			continue
		}
		table, source, err := dataset.Parse(filename, att.Content)
		if err != nil {
			continue
		}
		tables = append(tables, ExtractedTable{Name: filename, Source: source, Table: table})
	}

	return tables, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func hasTabularExt(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".csv", ".xlsx", ".xls", ".html", ".htm", ".pdf"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
