package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wastewatch/internal"
	"wastewatch/internal/analysis"
	"wastewatch/internal/dataset"
	"wastewatch/internal/pipeline"
)

const maxUploadBytes = 100 * 1024 * 1024

type deriveRequest struct {
	Mapping  internal.RoleMapping `json:"mapping,omitempty"`
	Products []string             `json:"products,omitempty"`
	Years    *internal.YearRange  `json:"yearRange,omitempty"`
}

type datasetSummary struct {
	ID         int                  `json:"id"`
	Name       string               `json:"name"`
	Source     string               `json:"source"`
	RowCount   int                  `json:"rowCount"`
	Headers    []string             `json:"headers,omitempty"`
	Mapping    internal.RoleMapping `json:"mapping,omitempty"`
	Products   []string             `json:"products,omitempty"`
	YearBounds *internal.YearRange  `json:"yearBounds,omitempty"`
	CreatedAt  string               `json:"createdAt"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// Required-role binding failures are configuration errors, not server faults.
func deriveStatus(err error) int {
	if strings.Contains(err.Error(), "required role") {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parse multipart form: %v", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field: %v", err)
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read upload: %v", err)
		return
	}

	table, source, err := dataset.Parse(header.Filename, blob)
	if err != nil {
		writeError(w, http.StatusBadRequest, "parse %s: %v", header.Filename, err)
		return
	}

	mapping := pipeline.DetectMapping(table.Headers)
	hashBytes := sha256.Sum256(blob)
	id, err := s.db.InsertDataset(header.Filename, string(source), hex.EncodeToString(hashBytes[:]), nil, table, mapping)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store dataset: %v", err)
		return
	}

	summary := datasetSummary{
		ID:       int(id),
		Name:     header.Filename,
		Source:   string(source),
		RowCount: len(table.Rows),
		Headers:  table.Headers,
		Mapping:  mapping,
		Products: pipeline.Products(table, mapping),
	}
	if bounds, ok := pipeline.YearBounds(table, mapping); ok {
		summary.YearBounds = &bounds
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.ListDatasets(200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list datasets: %v", err)
		return
	}
	out := make([]datasetSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, datasetSummary{
			ID:        row.ID,
			Name:      row.Name,
			Source:    row.Source,
			RowCount:  row.RowCount,
			CreatedAt: row.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	row, table, mapping, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	summary := datasetSummary{
		ID:        row.ID,
		Name:      row.Name,
		Source:    row.Source,
		RowCount:  row.RowCount,
		Headers:   table.Headers,
		Mapping:   mapping,
		Products:  pipeline.Products(table, mapping),
		CreatedAt: row.CreatedAt,
	}
	if bounds, ok := pipeline.YearBounds(table, mapping); ok {
		summary.YearBounds = &bounds
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	table, ok := s.deriveFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":     table.Rows,
		"warnings": table.Warnings,
	})
}

// handleMatches canonicalizes the dataset's product labels against the
// synced registry so heterogeneous uploads group consistently.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	_, table, mapping, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	products, err := s.db.ListProducts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list products: %v", err)
		return
	}
	matcher := pipeline.NewMatcher(s.cfg, products)
	writeJSON(w, http.StatusOK, matcher.MatchAll(table, mapping))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	table, ok := s.deriveFromRequest(w, r)
	if !ok {
		return
	}

	tab := chi.URLParam(r, "tab")
	switch tab {
	case "overview":
		writeJSON(w, http.StatusOK, analysis.BuildOverview(table.Rows))
	case "waste":
		writeJSON(w, http.StatusOK, analysis.BuildWasteReport(table.Rows))
	case "inventory":
		writeJSON(w, http.StatusOK, analysis.BuildInventoryReport(table.Rows))
	case "production":
		writeJSON(w, http.StatusOK, analysis.BuildProductionReport(table.Rows))
	case "economics":
		writeJSON(w, http.StatusOK, analysis.BuildEconomicReport(table.Rows))
	default:
		writeError(w, http.StatusNotFound, "unknown report tab: %s", tab)
	}
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	table, ok := s.deriveFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.BuildInsights(table.Rows))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	table, ok := s.deriveFromRequest(w, r)
	if !ok {
		return
	}
	blob, err := pipeline.ExportCSV(table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export csv: %v", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="derived_metrics.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) (*internal.DatasetRow, internal.RawTable, internal.RoleMapping, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dataset id")
		return nil, internal.RawTable{}, nil, false
	}
	row, table, mapping, err := s.db.GetDataset(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load dataset: %v", err)
		return nil, internal.RawTable{}, nil, false
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "dataset %d not found", id)
		return nil, internal.RawTable{}, nil, false
	}
	return row, table, mapping, true
}

// deriveFromRequest resolves the stored dataset plus the request's filter
// overrides. Omitted products mean "all products"; an explicit empty list
// means none, which derives to an empty table.
func (s *Server) deriveFromRequest(w http.ResponseWriter, r *http.Request) (internal.NormalizedTable, bool) {
	_, table, mapping, ok := s.loadDataset(w, r)
	if !ok {
		return internal.NormalizedTable{}, false
	}

	var req deriveRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
			return internal.NormalizedTable{}, false
		}
	}

	if len(req.Mapping) > 0 {
		mapping = req.Mapping
	}
	products := req.Products
	if products == nil {
		products = pipeline.Products(table, mapping)
	}
	years := internal.YearRange{}
	if req.Years != nil {
		years = *req.Years
	} else if bounds, ok := pipeline.YearBounds(table, mapping); ok {
		years = bounds
	}

	derived, err := pipeline.Derive(table, mapping, products, years)
	if err != nil {
		writeError(w, deriveStatus(err), "derive: %v", err)
		return internal.NormalizedTable{}, false
	}
	return derived, true
}
