package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/report"
	"github.com/ppiankov/claimcheck/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchAll     bool
	// noFooter is defined in check.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Fact-check many inputs from a file in parallel",
	Long: `Batch processes multiple inputs concurrently:
- Read inputs from a file (one text or URL per line, # starts a comment)
- Process inputs in parallel with a configurable worker count
- Generate a JSON and a Markdown report for each input

Example:
  claimcheck batch inputs.txt
  claimcheck batch inputs.txt --concurrency 4 --output-dir ./reports --all`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 2, "number of concurrent sessions")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimcheck-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchAll, "all", false, "check every extracted claim")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().String("gateway-url", "", "use running gateways at this base URL")
	batchCmd.Flags().Bool("resolve-urls", false, "fetch URL input and extract page text before claim extraction")
	batchCmd.Flags().Bool("summary", false, "add an LLM summary to each report")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"gateway-url":  "orchestrator.gateway_url",
		"resolve-urls": "input.resolve_urls",
		"summary":      "llm.enabled",
	}); err != nil {
		return err
	}

	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  claimcheck Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Enabled {
		fmt.Fprintf(os.Stderr, "  LLM:          %s\n", cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	gatewayURL := cfg.Orchestrator.GatewayURL
	if gatewayURL == "" {
		gatewayURL, err = startLocalGateways(ctx, cfg, logger)
		if err != nil {
			return err
		}
	}

	store, closeStore, err := newStore(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = closeStore() }()

	sessions, err := newController(cfg, gatewayURL, store, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	processor := worker.NewBatchProcessor(&sessionRunner{
		sessions:  sessions,
		all:       batchAll,
		summarize: cfg.LLM.Enabled,
		logger:    logger,
	}, concurrency)

	fmt.Fprintf(os.Stderr, "⚙️  Processing inputs with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	renderer := report.NewRenderer(!noFooter)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Input, result.Error)
			continue
		}

		// Session ids keep the names unique when two inputs share a slug
		stem := report.Slug(result.Input) + "-" + result.Session.ID[:8]
		jsonPath := filepath.Join(outputDir, stem+".json")
		mdPath := filepath.Join(outputDir, stem+".md")

		if err := renderer.RenderJSON(result.Session, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Input, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Session, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Input, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d claims, %d checked)\n", stem, len(result.Session.Claims), checkedCount(result.Session.Status))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d inputs failed", failureCount, len(results))
	}
	return nil
}

func checkedCount(status map[int]model.RunStatus) int {
	n := 0
	for _, st := range status {
		if st == model.StatusDone {
			n++
		}
	}
	return n
}
