package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/storage"
)

// End to end: raw report mail on disk -> processed datasets -> derived
// metrics -> exported workbook.
func TestSmokeMailToExport(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, buildReportEML(), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := db.UpsertReport("gmail", "<fixture-1@example.com>", "Monthly production report March", "plant@example.com", "2021-03-01T10:00:00Z", "hash", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	proc := NewProcessingService(db, cfg)
	res, err := proc.ProcessReport(report)
	if err != nil {
		t.Fatal(err)
	}
	if res.Datasets != 1 || res.Rows != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	updated, err := db.GetReportByID(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil || updated.Status != "processed" {
		t.Fatalf("status=%v", updated)
	}

	datasets, err := db.ListDatasetsForReport(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(datasets) != 1 {
		t.Fatalf("datasets=%d", len(datasets))
	}

	var table internal.RawTable
	if err := json.Unmarshal([]byte(datasets[0].TableJSON), &table); err != nil {
		t.Fatal(err)
	}
	mapping := internal.RoleMapping{}
	if err := json.Unmarshal([]byte(datasets[0].MappingJSON), &mapping); err != nil {
		t.Fatal(err)
	}

	years, ok := YearBounds(table, mapping)
	if !ok {
		t.Fatal("no year bounds")
	}
	derived, err := Derive(table, mapping, Products(table, mapping), years)
	if err != nil {
		t.Fatal(err)
	}
	if len(derived.Rows) != 2 {
		t.Fatalf("derived rows=%d", len(derived.Rows))
	}

	out := filepath.Join(tmp, "result.xlsx")
	if err := ExportXLSX(derived, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

// ProcessPending reports how many pending mails it handled and how many
// datasets that produced. Two table-bearing mails and one chatter mail
// give three handled reports with two datasets.
func TestProcessPendingCountsDatasets(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i, raw := range [][]byte{buildReportEML(), buildReportEML()} {
		rawPath := filepath.Join(tmp, fmt.Sprintf("report-%d.eml", i))
		if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
			t.Fatal(err)
		}
		messageID := fmt.Sprintf("<pending-%d@example.com>", i)
		if _, err := db.UpsertReport("gmail", messageID, "Monthly production report March", "plant@example.com", "2021-03-01T10:00:00Z", fmt.Sprintf("hash-%d", i), rawPath, "fetched"); err != nil {
			t.Fatal(err)
		}
	}

	chatter := "From: a@example.com\r\nSubject: Re: lunch\r\nContent-Type: text/plain\r\n\r\nSee you at noon.\r\n"
	chatterPath := filepath.Join(tmp, "chatter.eml")
	if err := os.WriteFile(chatterPath, []byte(chatter), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertReport("gmail", "<pending-chatter@example.com>", "Re: lunch", "a@example.com", "2021-03-01T10:00:00Z", "hash-chatter", chatterPath, "fetched"); err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	proc := NewProcessingService(db, cfg)
	reports, datasets, err := proc.ProcessPending(10, "gmail")
	if err != nil {
		t.Fatal(err)
	}
	if reports != 3 {
		t.Fatalf("reports=%d", reports)
	}
	if datasets != 2 {
		t.Fatalf("datasets=%d", datasets)
	}
}

// Correspondence without tables gets skipped, and reprocessing is
// idempotent because old datasets are dropped first.
func TestProcessSkipsNonReportMail(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	raw := "From: a@example.com\r\nSubject: Re: lunch\r\nContent-Type: text/plain\r\n\r\nSee you at noon.\r\n"
	rawPath := filepath.Join(tmp, "chatter.eml")
	if err := os.WriteFile(rawPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := db.UpsertReport("imap", "<chatter-1@example.com>", "Re: lunch", "a@example.com", "2021-03-01T10:00:00Z", "hash2", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	proc := NewProcessingService(db, cfg)
	res, err := proc.ProcessReport(report)
	if err != nil {
		t.Fatal(err)
	}
	if res.Datasets != 0 {
		t.Fatalf("datasets=%d", res.Datasets)
	}

	updated, err := db.GetReportByID(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil || updated.Status != "skipped" {
		t.Fatalf("status=%v", updated)
	}
}
