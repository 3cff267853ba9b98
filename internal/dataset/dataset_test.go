package dataset

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"wastewatch/internal"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseCSV(t *testing.T) {
	blob := []byte("Product,Year,Production\nFrozen Chicken,2021,500\n,,\nCanned Tuna,2020,250\n")
	table, err := ParseCSV(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Headers) != 3 {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d (empty rows should be dropped)", len(table.Rows))
	}
}

func TestParseCSVRaggedRowsPadded(t *testing.T) {
	blob := []byte("Product,Year,Production\nFrozen Chicken,2021\n")
	table, err := ParseCSV(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows[0]) != 3 || table.Rows[0][2] != "" {
		t.Fatalf("row=%v", table.Rows[0])
	}
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Product", "Year", "Production"},
		{"Frozen Chicken", 2021, 500},
		{"Canned Tuna", 2020, 250},
	})
	table, err := ParseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[0][0] != "Frozen Chicken" {
		t.Fatalf("cell=%q", table.Rows[0][0])
	}
}

func TestParseHTMLTablePicksLargest(t *testing.T) {
	html := `
<html><body>
<table><tr><th>Nav</th></tr><tr><td>Home</td></tr></table>
<table>
<tr><th>Product</th><th>Year</th></tr>
<tr><td>Frozen Chicken</td><td>2021</td></tr>
<tr><td>Canned Tuna</td><td>2020</td></tr>
</table>
</body></html>`
	table, err := ParseHTMLTable(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Headers) != 2 || table.Headers[0] != "Product" {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
}

func TestParseHTMLNoTable(t *testing.T) {
	if _, err := ParseHTMLTable("<html><body><p>hello</p></body></html>"); err == nil {
		t.Fatal("expected error for table-less html")
	}
}

func TestParseDispatch(t *testing.T) {
	csvBlob := []byte("Product,Year\nA,2021\n")

	table, source, err := Parse("report.csv", csvBlob)
	if err != nil || source != internal.SourceCSV || len(table.Rows) != 1 {
		t.Fatalf("csv: table=%v source=%v err=%v", table, source, err)
	}

	// extension-less uploads fall back to CSV
	_, source, err = Parse("report", csvBlob)
	if err != nil || source != internal.SourceCSV {
		t.Fatalf("fallback: source=%v err=%v", source, err)
	}

	xlsxBlob := mkXLSX([][]any{{"Product", "Year"}, {"A", 2021}})
	_, source, err = Parse("report.XLSX", xlsxBlob)
	if err != nil || source != internal.SourceXLSX {
		t.Fatalf("xlsx: source=%v err=%v", source, err)
	}
}

func TestSplitPDFLine(t *testing.T) {
	cells := splitLine("Frozen Chicken   2021 | 500\t80")
	if len(cells) != 4 || cells[0] != "Frozen Chicken" || cells[3] != "80" {
		t.Fatalf("cells=%v", cells)
	}
}
