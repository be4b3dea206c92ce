package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperlens/paperlens/internal/extract"
	"github.com/paperlens/paperlens/internal/fetch"
	"github.com/paperlens/paperlens/internal/llm"
	"github.com/paperlens/paperlens/internal/resolve"
	"github.com/paperlens/paperlens/models"
)

var (
	extractForce     bool
	extractWorkers   int
	extractPDFDir    string
	extractSummarize bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <arxiv-id> [arxiv-id...]",
	Short: "Extract figures and tables for one or more papers",
	Long: `Extract figures and tables from the ar5iv rendering of each paper,
falling back to a local PDF when available. Results land in the data root as
<paper-id>/<figure-id>.png files plus a JSON sidecar. A paper with an
existing sidecar is skipped unless --force is given.

With --pdf-dir, <paper-id>.pdf files in that directory are used as the
fallback source.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract even when a sidecar exists")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 4, "papers processed in parallel")
	extractCmd.Flags().StringVar(&extractPDFDir, "pdf-dir", "", "directory holding <paper-id>.pdf fallback files")
	extractCmd.Flags().BoolVar(&extractSummarize, "summarize", false, "also generate a summary.md per paper (needs OPENAI_API_KEY)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if extractSummarize && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("--summarize needs OPENAI_API_KEY")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.NewClient(log)
	primary := extract.NewHTMLExtractor(fetcher, log)
	fallback := extract.NewPDFExtractor(nil, nil, log)
	orchestrator := extract.NewOrchestrator(primary, fallback, store, log)

	var summarizer llm.Summarizer
	if extractSummarize {
		summarizer = llm.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
	}
	resolver := resolve.New(store, cfg.DataRoot, log)

	type outcome struct {
		paperID string
		figures int
	}
	results, err := llm.ParallelProcess(ctx, args, extractWorkers, func(ctx context.Context, _ int, paperID string) (outcome, error) {
		src := models.PaperSource{
			PaperID: paperID,
			HTMLURL: cfg.HTMLURL(paperID),
		}
		if extractPDFDir != "" {
			pdf := filepath.Join(extractPDFDir, paperID+".pdf")
			if _, err := os.Stat(pdf); err == nil {
				src.PDFPath = pdf
			}
		}

		registry, err := orchestrator.Run(ctx, src, cfg.PaperDir(paperID), extractForce)
		if err != nil {
			return outcome{}, fmt.Errorf("extracting %s: %w", paperID, err)
		}
		if summarizer != nil && len(registry) > 0 {
			if err := writeSummary(ctx, summarizer, resolver, cfg.PaperDir(paperID), paperID, registry); err != nil {
				log.Warn("Summary for %s failed: %v", paperID, err)
			}
		}
		return outcome{paperID: paperID, figures: len(registry)}, nil
	})
	if err != nil {
		return err
	}

	for _, res := range results {
		fmt.Printf("%s: %d figures\n", res.paperID, res.figures)
	}
	return nil
}

// writeSummary summarizes the paper's figure inventory and writes the
// substituted markdown next to the sidecar. The figure inventory doubles as
// the content here; a full-text pipeline can swap in richer input.
func writeSummary(ctx context.Context, summarizer llm.Summarizer, resolver *resolve.Resolver, dir, paperID string, registry models.Registry) error {
	summary, err := summarizer.Summarize(ctx, paperID, llm.FigureInventory(registry), registry)
	if err != nil {
		return err
	}
	markdown := resolver.Substitute(ctx, summary.Markdown, paperID, registry)
	return os.WriteFile(filepath.Join(dir, "summary.md"), []byte(markdown), 0644)
}
