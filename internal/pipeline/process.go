package pipeline

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/storage"
)

// ProcessingService turns fetched report mail into stored datasets with a
// detected role mapping, ready for derivation.
type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg}
}

type ProcessResult struct {
	ReportID int
	Datasets int
	Rows     int
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	report, err := s.db.MustReportByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessReport(report)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListReportsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedReports := 0
	processedDatasets := 0
	for _, report := range pending {
		if provider != "" && report.Provider != provider {
			continue
		}
		res, err := s.ProcessReport(report)
		if err != nil {
			return processedReports, processedDatasets, err
		}
		processedReports++
		processedDatasets += res.Datasets
	}
	return processedReports, processedDatasets, nil
}

func (s *ProcessingService) ProcessReport(report internal.ReportRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(report.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	tables, subject, text, attachmentNames, err := ExtractTablesFromMailRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectReportMail(firstNonEmpty(subject, report.Subject), text, attachmentNames, len(tables))
	if err := s.db.DeleteDatasetsForReport(report.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsReport || len(tables) == 0 {
		_ = s.db.UpdateReportStatus(report.ID, "skipped")
		_ = s.db.InsertRun(traceID(), nil, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"datasets": 0, "rows": 0})
		return ProcessResult{ReportID: report.ID, Datasets: 0}, nil
	}

	datasets := 0
	rowCount := 0
	var lastDatasetID int64
	for _, extracted := range tables {
		mapping := DetectMapping(extracted.Table.Headers)
		datasetID, err := s.db.InsertDataset(
			extracted.Name, string(extracted.Source), tableHash(extracted.Table),
			&report.ID, extracted.Table, mapping,
		)
		if err != nil {
			return ProcessResult{}, err
		}
		datasets++
		rowCount += len(extracted.Table.Rows)
		lastDatasetID = datasetID
	}

	if err := s.db.UpdateReportStatus(report.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(traceID(), &lastDatasetID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"datasets": datasets, "rows": rowCount})

	return ProcessResult{ReportID: report.ID, Datasets: datasets, Rows: rowCount}, nil
}

func tableHash(table internal.RawTable) string {
	blob, _ := json.Marshal(table)
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
