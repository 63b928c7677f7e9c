// Package session owns fact-check sessions: extraction of claims from the
// user's input, the automatic check of the first claim and user-triggered
// checks of the others.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/normalize"
	"github.com/ppiankov/claimcheck/internal/orchestrate"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrClaimNotFound   = errors.New("claim not found")
	ErrCheckInProgress = errors.New("claim check already in progress")
	ErrAlreadyChecked  = errors.New("claim already checked")
	ErrNoSummarizer    = errors.New("summaries are not enabled")

	// ErrStaleSubmission is returned by writes for an input the session has
	// since replaced
	ErrStaleSubmission = errors.New("session input was replaced")
)

// anyGeneration lets begin accept whatever submission the session holds
const anyGeneration = -1

// Resolver turns a URL input into the page text sent for extraction
type Resolver interface {
	ResolveText(ctx context.Context, url string) (string, error)
}

// Summarizer writes a prose summary of a checked session
type Summarizer interface {
	Summarize(ctx context.Context, sess *model.Session) (string, error)
}

// Options configures a Controller
type Options struct {
	// AutoCheckDelay separates extraction from the automatic check of the
	// first claim
	AutoCheckDelay time.Duration

	// Workers bounds concurrent orchestrations in CheckAll
	Workers int

	// Resolver, when set, resolves URL input to page text
	Resolver Resolver

	// Summarizer, when set, enables Summarize
	Summarizer Summarizer
}

// Controller runs fact-check sessions
type Controller struct {
	client orchestrate.GatewayClient
	orch   *orchestrate.Orchestrator
	store  *Store
	opts   Options
	logger *slog.Logger

	locks   sync.Mutex
	perSess map[string]*sessionLock

	// Background work (auto-checks, async checks) runs under ctx and is
	// tracked by wg
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a session controller
func NewController(client orchestrate.GatewayClient, orch *orchestrate.Orchestrator, store *Store, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:  client,
		orch:    orch,
		store:   store,
		opts:    opts,
		logger:  logger,
		perSess: make(map[string]*sessionLock),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Create starts a new empty session
func (c *Controller) Create(ctx context.Context) (*model.Session, error) {
	return c.store.Create(ctx)
}

// Get returns the current state of a session
func (c *Controller) Get(ctx context.Context, id string) (*model.Session, error) {
	return c.store.Get(ctx, id)
}

// Submit extracts claims from input and schedules the automatic check of
// the first claim. Later claims are only checked on request.
func (c *Controller) Submit(ctx context.Context, id, input string) (*model.Session, error) {
	sess, err := c.extract(ctx, id, input, true)
	if err != nil {
		return nil, err
	}

	first, gen := sess.Claims[0].ID, sess.Generation
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.autoCheck(id, first, gen)
	}()
	return sess, nil
}

// Extract replaces the session content with the claims found in input
// without checking any of them
func (c *Controller) Extract(ctx context.Context, id, input string) (*model.Session, error) {
	return c.extract(ctx, id, input, false)
}

func (c *Controller) extract(ctx context.Context, id, input string, analyze bool) (*model.Session, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return nil, ErrEmptyInput
	}

	// Clear previous results before the extraction call
	sess, err := c.update(ctx, id, func(s *model.Session) error {
		s.Reset(query)
		s.Extracting = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	gen := sess.Generation

	if sess.InputType == model.InputURL && c.opts.Resolver != nil {
		text, err := c.opts.Resolver.ResolveText(ctx, query)
		if err != nil {
			c.logger.Warn("resolve url input, sending url as-is", "url", query, "error", err)
		} else {
			sess.SourceURL = query
			query = text
		}
	}
	sourceURL := sess.SourceURL

	raw, err := c.client.Extract(ctx, query)
	if err != nil {
		metrics.Sessions.WithLabelValues("failed").Inc()
		c.logger.Error("fact check failed", "session", id, "error", err)
		if _, uerr := c.update(context.WithoutCancel(ctx), id, func(s *model.Session) error {
			if s.Generation != gen {
				return ErrStaleSubmission
			}
			s.Extracting = false
			s.Analyzing = false
			return nil
		}); uerr != nil && !superseded(uerr) {
			c.logger.Error("clear loading flags", "session", id, "error", uerr)
		}
		return nil, fmt.Errorf("fact check failed: %w", err)
	}

	extracted := normalize.Claims(raw, query)
	checks := normalize.ClaimChecksByID(raw, extracted)

	sess, err = c.update(ctx, id, func(s *model.Session) error {
		if s.Generation != gen {
			return ErrStaleSubmission
		}
		s.SourceURL = sourceURL
		s.Claims = make([]model.ProcessedClaim, 0, len(extracted))
		for _, e := range extracted {
			s.Claims = append(s.Claims, model.ProcessedClaim{
				ExtractedClaim: e,
				ClaimChecks:    checks[e.ID],
			})
			s.SetStatus(e.ID, model.StatusIdle)
		}
		score := model.PlaceholderOverallScore
		s.OverallScore = &score
		s.Extracting = false
		s.Analyzing = analyze
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Sessions.WithLabelValues("extracted").Inc()
	c.logger.Info("claims extracted", "session", id, "claims", len(sess.Claims), "input_type", sess.InputType)
	return sess, nil
}

// autoCheck checks the first claim of submission gen after the configured
// delay. It does nothing once the session input has been replaced.
func (c *Controller) autoCheck(id string, claimID, gen int) {
	timer := time.NewTimer(c.opts.AutoCheckDelay)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return
	case <-timer.C:
	}

	run, err := c.begin(c.ctx, id, claimID, gen)
	if err == nil {
		_, err = c.runClaim(c.ctx, id, run)
	}
	switch {
	case superseded(err):
		return
	case err != nil:
		c.logger.Warn("auto evidence check failed", "session", id, "claim_id", claimID, "error", err)
	}

	if _, err := c.update(context.WithoutCancel(c.ctx), id, func(s *model.Session) error {
		if s.Generation != gen {
			return ErrStaleSubmission
		}
		s.Analyzing = false
		return nil
	}); err != nil && !superseded(err) {
		c.logger.Error("clear analyzing flag", "session", id, "error", err)
	}
}

// CheckClaim runs the evidence orchestration for one claim and waits for it.
// A claim is checked at most once per submission: a running claim yields
// ErrCheckInProgress and a finished one ErrAlreadyChecked.
func (c *Controller) CheckClaim(ctx context.Context, id string, claimID int) (*model.EvidenceResult, error) {
	run, err := c.begin(ctx, id, claimID, anyGeneration)
	if err != nil {
		return nil, err
	}
	return c.runClaim(ctx, id, run)
}

// StartCheck marks a claim running and checks it in the background
func (c *Controller) StartCheck(ctx context.Context, id string, claimID int) error {
	run, err := c.begin(ctx, id, claimID, anyGeneration)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.runClaim(c.ctx, id, run); err != nil && !superseded(err) {
			c.logger.Warn("evidence check failed", "session", id, "claim_id", claimID, "error", err)
		}
	}()
	return nil
}

// CheckAll checks every idle claim of the session, at most Workers at a time.
// It returns the joined failures; a failed claim also carries an error record.
func (c *Controller) CheckAll(ctx context.Context, id string) error {
	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}

	var jobs []worker.Job
	for _, claim := range sess.Claims {
		if sess.ClaimStatus(claim.ID) == model.StatusIdle {
			jobs = append(jobs, &checkJob{controller: c, sessionID: id, claimID: claim.ID})
		}
	}

	var errs []error
	for _, r := range worker.Run(ctx, c.opts.Workers, jobs) {
		if err := r.GetError(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// claimRun is a claim snapshot taken when its check began, with the
// submission it belongs to
type claimRun struct {
	claim      model.ProcessedClaim
	generation int
}

// begin moves an idle claim of submission gen to running and returns a
// snapshot of it. anyGeneration accepts the current submission.
func (c *Controller) begin(ctx context.Context, id string, claimID, gen int) (claimRun, error) {
	var run claimRun
	_, err := c.update(ctx, id, func(s *model.Session) error {
		if gen != anyGeneration && s.Generation != gen {
			return ErrStaleSubmission
		}
		found, ok := s.Claim(claimID)
		if !ok {
			return ErrClaimNotFound
		}
		switch s.ClaimStatus(claimID) {
		case model.StatusRunning:
			return ErrCheckInProgress
		case model.StatusDone, model.StatusFailed:
			return ErrAlreadyChecked
		}
		s.SetStatus(claimID, model.StatusRunning)
		run = claimRun{claim: *found, generation: s.Generation}
		return nil
	})
	return run, err
}

// runClaim orchestrates a begun claim and records its final status. Writes
// are dropped once the session input has been replaced or the session is
// gone, so a late run never touches a newer submission.
func (c *Controller) runClaim(ctx context.Context, id string, run claimRun) (result *model.EvidenceResult, err error) {
	claimID := run.claim.ID
	defer func() {
		status := model.StatusDone
		if err != nil {
			status = model.StatusFailed
		}
		if r := recover(); r != nil {
			status = model.StatusFailed
			err = fmt.Errorf("evidence check panicked: %v", r)
		}
		if _, uerr := c.update(context.WithoutCancel(ctx), id, func(s *model.Session) error {
			if s.Generation != run.generation {
				return ErrStaleSubmission
			}
			s.SetStatus(claimID, status)
			return nil
		}); uerr != nil && !superseded(uerr) {
			c.logger.Error("record claim status", "session", id, "claim_id", claimID, "error", uerr)
		}
	}()

	return c.orch.Run(ctx, run.claim, &sink{controller: c, sessionID: id, generation: run.generation})
}

// superseded reports whether err means the work belongs to an input or
// session that no longer exists
func superseded(err error) bool {
	return errors.Is(err, ErrStaleSubmission) || errors.Is(err, ErrSessionNotFound)
}

// Summarize writes a summary of the session's results and stores it
func (c *Controller) Summarize(ctx context.Context, id string) (string, error) {
	if c.opts.Summarizer == nil {
		return "", ErrNoSummarizer
	}
	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	summary, err := c.opts.Summarizer.Summarize(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("summarize session: %w", err)
	}
	if _, err := c.update(ctx, id, func(s *model.Session) error {
		if s.Generation != sess.Generation {
			return ErrStaleSubmission
		}
		s.Summary = summary
		return nil
	}); err != nil {
		return "", err
	}
	return summary, nil
}

// Wait blocks until background checks have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background checks and waits for them to stop
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Delete removes a session. Checks still running for it stop recording
// results.
func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock := c.lock(id)
	defer unlock()

	if _, err := c.store.Get(ctx, id); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	c.logger.Info("session deleted", "session", id)
	return nil
}

// update applies fn to the stored session under the session's lock and saves
// the result. Nothing is saved when fn fails.
func (c *Controller) update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	unlock := c.lock(id)
	defer unlock()

	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// sessionLock serializes writes to one session. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the session's lock and returns its release
func (c *Controller) lock(id string) (unlock func()) {
	c.locks.Lock()
	l, ok := c.perSess[id]
	if !ok {
		l = &sessionLock{}
		c.perSess[id] = l
	}
	l.refs++
	c.locks.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.locks.Lock()
		defer c.locks.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(c.perSess, id)
		}
	}
}

// sink merges orchestration results into the stored session by claim id.
// Merges for a replaced submission fail with ErrStaleSubmission.
type sink struct {
	controller *Controller
	sessionID  string
	generation int
}

func (s *sink) MergeClaim(ctx context.Context, id int, fn func(*model.ProcessedClaim)) error {
	_, err := s.controller.update(context.WithoutCancel(ctx), s.sessionID, func(sess *model.Session) error {
		if sess.Generation != s.generation {
			return ErrStaleSubmission
		}
		claim, ok := sess.Claim(id)
		if !ok {
			return ErrClaimNotFound
		}
		fn(claim)
		return nil
	})
	return err
}

// checkJob runs one claim check on the worker pool
type checkJob struct {
	controller *Controller
	sessionID  string
	claimID    int
}

type checkResult struct {
	claimID int
	err     error
}

func (r *checkResult) GetError() error {
	return r.err
}

func (j *checkJob) Execute(ctx context.Context) worker.Result {
	_, err := j.controller.CheckClaim(ctx, j.sessionID, j.claimID)
	if err == nil || errors.Is(err, ErrCheckInProgress) || errors.Is(err, ErrAlreadyChecked) || superseded(err) {
		return &checkResult{claimID: j.claimID}
	}
	return &checkResult{claimID: j.claimID, err: fmt.Errorf("claim %d: %w", j.claimID, err)}
}
