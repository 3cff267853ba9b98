package storage

import (
	"path/filepath"
	"testing"

	"wastewatch/internal"
	"wastewatch/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProductsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	products := []internal.CatalogProduct{
		{ID: 1, SyncUID: util.StringPtr("sync-1"), Name: "Frozen Chicken Breast", Aliases: []string{"chicken breast"}, RawJSON: "{}"},
		{ID: 2, Name: "Canned Tuna in Brine", RawJSON: "{}"},
	}
	if err := db.UpsertProducts(products); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}

	// upsert same id updates in place
	products[0].Name = "Frozen Chicken Breast 1kg"
	if err := db.UpsertProducts(products[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = db.ListProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len after upsert=%d", len(got))
	}
}

func TestReportWorkflow(t *testing.T) {
	db := openTestDB(t)

	report, err := db.UpsertReport("gmail", "<m1@example.com>", "Monthly report", "plant@example.com", "2021-03-01T10:00:00Z", "h1", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if report.ID == 0 || report.Status != "fetched" {
		t.Fatalf("report=%+v", report)
	}

	// same provider+messageId must not duplicate
	again, err := db.UpsertReport("gmail", "<m1@example.com>", "Monthly report (resent)", "plant@example.com", "2021-03-02T10:00:00Z", "h1", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != report.ID {
		t.Fatalf("duplicate report row: %d vs %d", again.ID, report.ID)
	}
	if again.Subject != "Monthly report (resent)" {
		t.Fatalf("subject=%q", again.Subject)
	}

	pending, err := db.ListReportsByStatus("fetched", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending=%d", len(pending))
	}

	if err := db.UpdateReportStatus(report.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	updated, err := db.GetReportByID(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != "processed" {
		t.Fatalf("status=%q", updated.Status)
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	report, err := db.UpsertReport("imap", "<m2@example.com>", "Report", "a@example.com", "2021-03-01T10:00:00Z", "h2", "/tmp/m2.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}

	table := internal.RawTable{
		Headers: []string{"Product", "Year"},
		Rows:    [][]string{{"Frozen Chicken", "2021"}},
	}
	mapping := internal.RoleMapping{internal.RoleProduct: "Product", internal.RoleYear: "Year"}

	id, err := db.InsertDataset("report.csv", "csv", "hash-a", &report.ID, table, mapping)
	if err != nil {
		t.Fatal(err)
	}

	row, gotTable, gotMapping, err := db.GetDataset(int(id))
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.RowCount != 1 || row.ReportID == nil || *row.ReportID != report.ID {
		t.Fatalf("row=%+v", row)
	}
	if len(gotTable.Rows) != 1 || gotTable.Rows[0][0] != "Frozen Chicken" {
		t.Fatalf("table=%+v", gotTable)
	}
	if gotMapping[internal.RoleYear] != "Year" {
		t.Fatalf("mapping=%v", gotMapping)
	}

	forReport, err := db.ListDatasetsForReport(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(forReport) != 1 {
		t.Fatalf("forReport=%d", len(forReport))
	}

	if err := db.DeleteDatasetsForReport(report.ID); err != nil {
		t.Fatal(err)
	}
	forReport, err = db.ListDatasetsForReport(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(forReport) != 0 {
		t.Fatalf("datasets not deleted: %d", len(forReport))
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	missing, err := db.GetMetadata("lastSync")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("missing=%v", *missing)
	}

	if err := db.SetMetadata("lastSync", "2021-03-01T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("lastSync", "2021-04-01T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMetadata("lastSync")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "2021-04-01T10:00:00Z" {
		t.Fatalf("got=%v", got)
	}
}
