package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/fetch"
	"github.com/ppiankov/claimcheck/internal/gateway"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/orchestrate"
	"github.com/ppiankov/claimcheck/internal/server"
	"github.com/ppiankov/claimcheck/internal/session"
	"github.com/ppiankov/claimcheck/internal/upstream"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// newLimiter builds the outbound limiter keyed by agent id, with the
// per-agent overrides applied
func newLimiter(cfg model.UpstreamConfig) *worker.Limiter {
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	for agentID, rps := range map[string]float64{
		cfg.Agents.Extract:    cfg.Rates.Extract,
		cfg.Agents.Verify:     cfg.Rates.Verify,
		cfg.Agents.SourceCred: cfg.Rates.SourceCred,
		cfg.Agents.Assess:     cfg.Rates.Assess,
	} {
		if rps > 0 {
			limiter.SetRate(agentID, rps, cfg.BurstSize)
		}
	}
	return limiter
}

// newGateways builds the agent gateways behind one shared upstream client
func newGateways(cfg *model.Config, logger *slog.Logger) []*gateway.Gateway {
	limiter := newLimiter(cfg.Upstream)
	client := upstream.NewClient(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		APIKey:    cfg.Upstream.APIKey,
		ProjectID: cfg.Upstream.ProjectID,
	}, &http.Client{}, limiter)

	if !client.Configured() {
		logger.Warn("upstream credentials missing; gateways will answer 500 Server not configured")
	}
	return gateway.Defaults(cfg.Upstream, client, logger)
}

// newStore opens the session backend. The returned close func is never nil.
func newStore(ctx context.Context, cfg model.SessionConfig) (*session.Store, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		c := cache.NewMemoryCache(cfg.TTL, cfg.TTL/2)
		return session.NewStore(c, cfg.TTL), func() error { return nil }, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			DefaultTTL: cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return session.NewStore(c, cfg.TTL), c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// newController wires the session controller to the gateways at gatewayURL
func newController(cfg *model.Config, gatewayURL string, store *session.Store, logger *slog.Logger) (*session.Controller, error) {
	client := orchestrate.NewHTTPClient(gatewayURL, cfg.Orchestrator.CallTimeout, &http.Client{})
	orch := orchestrate.New(client, orchestrate.Options{
		TolerateSourceCredFailure: cfg.Orchestrator.TolerateSourceCredFailure,
	}, logger)

	opts := session.Options{
		AutoCheckDelay: cfg.Orchestrator.AutoCheckDelay,
		Workers:        cfg.Orchestrator.Workers,
	}
	if cfg.Input.ResolveURLs {
		opts.Resolver = fetch.NewFetcher(cfg.Input)
	}
	if cfg.LLM.Enabled {
		summarizer, err := llm.NewSummarizer(cfg.LLM)
		if err != nil {
			return nil, err
		}
		opts.Summarizer = summarizer
	}

	return session.NewController(client, orch, store, opts, logger), nil
}

// startLocalGateways serves the gateways on an ephemeral loopback port until
// ctx is cancelled and returns their base URL
func startLocalGateways(ctx context.Context, cfg *model.Config, logger *slog.Logger) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for local gateways: %w", err)
	}

	srv := server.New(server.NewRouter(server.Options{
		Gateways: newGateways(cfg, logger),
		Logger:   logger,
	}), cfg.Server.ShutdownTimeout, logger)

	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			logger.Error("local gateways stopped", "error", err)
		}
	}()
	return "http://" + ln.Addr().String(), nil
}

// loopbackURL is the URL a process reaches its own listener on
func loopbackURL(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf("http://127.0.0.1:%d", tcp.Port)
	}
	return "http://" + addr.String()
}

// sessionRunner checks one input the way the web flow does: extract, check
// the first claim, then optionally the rest and a summary
type sessionRunner struct {
	sessions  *session.Controller
	all       bool
	summarize bool
	logger    *slog.Logger
}

func (r *sessionRunner) RunSession(ctx context.Context, input string) (*model.Session, error) {
	sess, err := r.sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	sess, err = r.sessions.Extract(ctx, sess.ID, input)
	if err != nil {
		return nil, err
	}

	if len(sess.Claims) > 0 {
		if _, err := r.sessions.CheckClaim(ctx, sess.ID, sess.Claims[0].ID); err != nil {
			r.logger.Warn("evidence check failed", "session", sess.ID, "claim_id", sess.Claims[0].ID, "error", err)
		}
	}
	if r.all {
		if err := r.sessions.CheckAll(ctx, sess.ID); err != nil {
			r.logger.Warn("some evidence checks failed", "session", sess.ID, "error", err)
		}
	}
	if r.summarize {
		if _, err := r.sessions.Summarize(ctx, sess.ID); err != nil {
			r.logger.Warn("summary failed", "session", sess.ID, "error", err)
		}
	}

	return r.sessions.Get(ctx, sess.ID)
}
