package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/claimcheck/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent gateways and the session API",
	Long: `Serve exposes:
- POST /api/claims, /api/claim-verify, /api/source-cred, /api/claim-assess
  (gateways to the hosted agents)
- /api/sessions (fact-check sessions driven by the evidence orchestrator)
- /health and /metrics

Example:
  claimcheck serve
  claimcheck serve --addr :9090 --session-backend redis`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("session-backend", "memory", "session storage (memory, redis)")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the redis backend")
	serveCmd.Flags().String("gateway-url", "", "gateway base URL for the orchestrator (default: this server)")
	serveCmd.Flags().Bool("resolve-urls", false, "fetch URL input and extract page text before claim extraction")
	serveCmd.Flags().Bool("llm", false, "enable session summaries")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"addr":            "server.addr",
		"session-backend": "session.backend",
		"redis-addr":      "session.redis_addr",
		"gateway-url":     "orchestrator.gateway_url",
		"resolve-urls":    "input.resolve_urls",
		"llm":             "llm.enabled",
	}); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close session store", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}

	gatewayURL := cfg.Orchestrator.GatewayURL
	if gatewayURL == "" {
		gatewayURL = loopbackURL(ln.Addr())
	}

	sessions, err := newController(cfg, gatewayURL, store, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer sessions.Close()

	router := server.NewRouter(server.Options{
		Gateways: newGateways(cfg, logger),
		Sessions: sessions,
		Debug:    verbose,
		Logger:   logger,
	})

	logger.Info("starting claimcheck",
		"version", Version,
		"addr", ln.Addr().String(),
		"gateway_url", gatewayURL,
		"session_backend", cfg.Session.Backend,
		"summaries", cfg.LLM.Enabled,
	)
	return server.New(router, cfg.Server.ShutdownTimeout, logger).Serve(ctx, ln)
}
