package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/connectors"
	gmailconnector "wastewatch/internal/connectors/gmail"
	imapconnector "wastewatch/internal/connectors/imap"
	"wastewatch/internal/pipeline"
	"wastewatch/internal/storage"
)

// Service polls a mailbox for monthly reports and runs the full
// fetch -> extract -> derive -> export cycle on an interval.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	processed, datasets, err := processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport {
		if err := s.exportProcessed(provider); err != nil {
			return err
		}
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d datasets=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, processed, datasets)
	_ = ctx
	return nil
}

// exportProcessed derives metrics for every dataset of each processed
// report, using the detected mapping with no product or year filter,
// and writes one workbook per dataset.
func (s *Service) exportProcessed(provider string) error {
	reports, err := s.db.ListReportsByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, report := range reports {
		if report.Provider != provider {
			continue
		}
		datasets, err := s.db.ListDatasetsForReport(report.ID)
		if err != nil {
			return err
		}

		exported := 0
		for _, ds := range datasets {
			var table internal.RawTable
			if err := json.Unmarshal([]byte(ds.TableJSON), &table); err != nil {
				return fmt.Errorf("decode dataset %d: %w", ds.ID, err)
			}
			mapping := internal.RoleMapping{}
			_ = json.Unmarshal([]byte(ds.MappingJSON), &mapping)

			products := pipeline.Products(table, mapping)
			years, ok := pipeline.YearBounds(table, mapping)
			if !ok {
				continue
			}
			derived, err := pipeline.Derive(table, mapping, products, years)
			if err != nil {
				continue
			}
			if len(derived.Rows) == 0 {
				continue
			}

			filename := fmt.Sprintf("%d_%d_%s.xlsx", report.ID, ds.ID, sanitizeName(ds.Name))
			outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
			if err := pipeline.ExportXLSX(derived, outputPath); err != nil {
				return err
			}
			exported++
		}

		if exported > 0 {
			_ = s.db.UpdateReportStatus(report.ID, "exported")
		}
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
