package dataset

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wastewatch/internal"
)

// ParseHTMLTable extracts the largest <table> from an HTML document. Mail
// bodies frequently carry the monthly report inline as a table rather than
// an attachment.
func ParseHTMLTable(html string) (internal.RawTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return internal.RawTable{}, fmt.Errorf("parse html: %w", err)
	}

	var best internal.RawTable
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		rows := sel.Find("tr")
		if rows.Length() < 2 {
			return
		}

		var table internal.RawTable
		rows.First().Find("th,td").Each(func(_ int, cellSel *goquery.Selection) {
			table.Headers = append(table.Headers, strings.TrimSpace(cellSel.Text()))
		})

		rows.Slice(1, rows.Length()).Each(func(_ int, rowSel *goquery.Selection) {
			var cells []string
			rowSel.Find("th,td").Each(func(_ int, cellSel *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cellSel.Text()))
			})
			if len(cells) == 0 || isEmptyRow(cells) {
				return
			}
			table.Rows = append(table.Rows, cells)
		})

		if len(table.Rows) > len(best.Rows) {
			best = table
		}
	})

	if best.Headers == nil {
		return internal.RawTable{}, fmt.Errorf("no table found in html")
	}
	return validate(best)
}
