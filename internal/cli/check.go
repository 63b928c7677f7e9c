package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/report"
	"github.com/spf13/cobra"
)

var (
	outJSON      string
	outMD        string
	checkAll     bool
	checkTimeout time.Duration
	noFooter     bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <text-or-url>",
	Short: "Fact-check a text or URL",
	Long: `Check extracts the claims in the input and runs the evidence check
for the first claim (or every claim with --all):
- Logic and tonality pass
- Source credibility for the evidence domains
- Verdict with supporting and refuting evidence

Without --gateway-url the agent gateways run in-process.

Example:
  claimcheck check "The Eiffel Tower was completed in 1889."
  claimcheck check https://example.com/article --resolve-urls --all --md report.md
  claimcheck check "..." --summary --json report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	checkCmd.Flags().BoolVar(&checkAll, "all", false, "check every extracted claim")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "overall timeout")
	checkCmd.Flags().String("gateway-url", "", "use running gateways at this base URL")
	checkCmd.Flags().Bool("resolve-urls", false, "fetch URL input and extract page text before claim extraction")
	checkCmd.Flags().Bool("summary", false, "add an LLM summary (needs OPENAI_API_KEY)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"gateway-url":  "orchestrator.gateway_url",
		"resolve-urls": "input.resolve_urls",
		"summary":      "llm.enabled",
	}); err != nil {
		return err
	}

	input := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

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

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", input)
		fmt.Fprintf(os.Stderr, "Gateways: %s\n", gatewayURL)
		fmt.Fprintln(os.Stderr)
	}

	runner := &sessionRunner{
		sessions:  sessions,
		all:       checkAll,
		summarize: cfg.LLM.Enabled,
		logger:    logger,
	}
	sess, err := runner.RunSession(ctx, input)
	if err != nil {
		return fmt.Errorf("fact check failed: %w", err)
	}

	renderer := report.NewRenderer(!noFooter)
	if outJSON != "" {
		if err := renderer.RenderJSON(sess, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(sess, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	renderer.RenderSummary(os.Stdout, sess)
	return nil
}
