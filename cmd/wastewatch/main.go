package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/connectors"
	gmailconnector "wastewatch/internal/connectors/gmail"
	imapconnector "wastewatch/internal/connectors/imap"
	"wastewatch/internal/dataset"
	"wastewatch/internal/listener"
	"wastewatch/internal/pipeline"
	"wastewatch/internal/registry"
	"wastewatch/internal/server"
	"wastewatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "registry:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mode := fs.String("mode", "", "incremental mode: day|hour (empty means full sync)")
		_ = fs.Parse(os.Args[2:])
		svc := registry.NewSyncService(db, cfg)
		if strings.TrimSpace(*mode) == "" {
			count, err := svc.InitialSync(context.Background())
			must(err)
			fmt.Printf("registry sync complete: %d products\n", count)
			return
		}
		count, err := svc.IncrementalSync(context.Background(), *mode)
		must(err)
		fmt.Printf("registry incremental sync complete mode=%s products=%d\n", *mode, count)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed report id=%d datasets=%d rows=%d\n", res.ReportID, res.Datasets, res.Rows)
			return
		}
		reports, datasets, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending reports=%d datasets=%d\n", reports, datasets)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "detect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "dataset file (csv|xlsx|html|pdf)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		table, source, err := loadTable(*input)
		must(err)
		mapping := pipeline.DetectMapping(table.Headers)
		fmt.Printf("detected source=%s rows=%d\n", source, len(table.Rows))
		for _, role := range internal.AllRoles {
			if col, ok := mapping[role]; ok {
				fmt.Printf("  %-16s -> %q\n", role, col)
			} else {
				fmt.Printf("  %-16s -> (unbound)\n", role)
			}
		}
	case "derive":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "dataset file (csv|xlsx|html|pdf)")
		output := fs.String("output", "", "output path (.csv or .xlsx)")
		products := fs.String("products", "", "comma-separated product filter (default: all)")
		yearMin := fs.Int("year-min", 0, "inclusive lower year bound (default: dataset min)")
		yearMax := fs.Int("year-max", 0, "inclusive upper year bound (default: dataset max)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" || strings.TrimSpace(*output) == "" {
			must(fmt.Errorf("--input and --output are required"))
		}

		table, _, err := loadTable(*input)
		must(err)
		mapping := pipeline.DetectMapping(table.Headers)

		selected := pipeline.Products(table, mapping)
		if strings.TrimSpace(*products) != "" {
			selected = splitCSVFlag(*products)
		}
		years, ok := pipeline.YearBounds(table, mapping)
		if !ok {
			must(fmt.Errorf("no usable year values in %s", *input))
		}
		if *yearMin != 0 {
			years.Min = *yearMin
		}
		if *yearMax != 0 {
			years.Max = *yearMax
		}

		derived, err := pipeline.Derive(table, mapping, selected, years)
		must(err)
		for _, warning := range derived.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}

		if strings.HasSuffix(strings.ToLower(*output), ".xlsx") {
			must(pipeline.ExportXLSX(derived, *output))
		} else {
			blob, err := pipeline.ExportCSV(derived)
			must(err)
			must(os.WriteFile(*output, blob, 0o644))
		}
		fmt.Printf("derive done rows=%d output=%s\n", len(derived.Rows), *output)
	case "match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "dataset file (csv|xlsx|html|pdf)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		table, _, err := loadTable(*input)
		must(err)
		mapping := pipeline.DetectMapping(table.Headers)
		products, err := db.ListProducts()
		must(err)
		matcher := pipeline.NewMatcher(cfg, products)
		for label, match := range matcher.MatchAll(table, mapping) {
			name := ""
			if match.Product != nil {
				name = match.Product.Name
			}
			fmt.Printf("%-40s status=%s confidence=%.2f reason=%s canonical=%q\n", label, match.Status, match.Confidence, match.Reason, name)
		}
	case "serve":
		must(server.New(db, cfg).ListenAndServe())
	default:
		usage()
		os.Exit(1)
	}
}

func loadTable(path string) (internal.RawTable, internal.DatasetSource, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.RawTable{}, "", err
	}
	return dataset.Parse(path, blob)
}

func splitCSVFlag(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: wastewatch <command>")
	fmt.Println("commands:")
	fmt.Println("  registry:sync [--mode=day|hour]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  detect --input=data.csv")
	fmt.Println("  derive --input=data.csv --output=out.csv [--products=a,b] [--year-min=2018] [--year-max=2023]")
	fmt.Println("  match --input=data.csv")
	fmt.Println("  serve")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
