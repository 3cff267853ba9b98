package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"wastewatch/internal"
	"wastewatch/internal/dataset"
)

func derivedFixture(t *testing.T) internal.NormalizedTable {
	t.Helper()
	table := sampleTable()
	mapping := DetectMapping(table.Headers)
	out, err := Derive(table, mapping, Products(table, mapping), internal.YearRange{Min: 2020, Max: 2021})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestExportCSVRoundTrip(t *testing.T) {
	derived := derivedFixture(t)

	blob, err := ExportCSV(derived)
	if err != nil {
		t.Fatal(err)
	}
	reparsed, err := dataset.ParseCSV(blob)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(reparsed.Headers, exportHeaders) {
		t.Fatalf("headers=%v", reparsed.Headers)
	}
	if len(reparsed.Rows) != len(derived.Rows) {
		t.Fatalf("rows=%d, want %d", len(reparsed.Rows), len(derived.Rows))
	}
	if reparsed.Rows[0][0] != "Frozen Chicken" {
		t.Fatalf("product cell=%q", reparsed.Rows[0][0])
	}
}

func TestExportXLSXWritesWorkbook(t *testing.T) {
	derived := derivedFixture(t)

	out := filepath.Join(t.TempDir(), "nested", "derived.xlsx")
	if err := ExportXLSX(derived, out); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	table, err := dataset.ParseXLSX(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Headers) != len(exportHeaders) {
		t.Fatalf("headers=%d, want %d", len(table.Headers), len(exportHeaders))
	}
	if len(table.Rows) != len(derived.Rows) {
		t.Fatalf("rows=%d, want %d", len(table.Rows), len(derived.Rows))
	}
}
