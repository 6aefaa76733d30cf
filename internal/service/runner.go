// File: internal/service/runner.go
// Package service runs complete automation runs: one browser session per run,
// login or registration, then record search. It is the core's inbound surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/inmate-bot/internal/bot"
	"github.com/xkilldash9x/inmate-bot/internal/config"
	"github.com/xkilldash9x/inmate-bot/internal/observability"
)

// Generic messages returned to callers. Diagnostic detail stays in the logs.
const (
	msgBusy        = "Error: the service is busy, try again later"
	msgCredentials = "Error: an account username and password are required"
	msgQuery       = "Error: a record id or a name is required"
	msgFailed      = "Error: the search could not be completed"
)

// Request is one inbound search.
type Request struct {
	LastName  string `json:"lastName"`
	FirstName string `json:"firstName"`
	Address   string `json:"address"`
	Username  string `json:"username"`
	// RecordID is searched before the name when set.
	RecordID string `json:"recordId,omitempty"`
}

// FullName is "First Last" with blank parts dropped.
func (r Request) FullName() string {
	return strings.Join(strings.Fields(r.FirstName+" "+r.LastName), " ")
}

// Result is the free-form outcome of a run.
type Result struct {
	Text    string `json:"result"`
	Success bool   `json:"success"`
	RunID   string `json:"runId,omitempty"`
}

// Runner executes runs with a bounded number in flight. Every run gets its own
// browser session, so a page is never shared.
type Runner struct {
	cfg     *config.Config
	factory SessionFactory
	sem     *semaphore.Weighted
	logger  func(runID string) *zap.Logger
	botOpts []bot.Option
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunLogger derives run loggers from l instead of the global logger.
func WithRunLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = func(runID string) *zap.Logger { return l.With(zap.String("run_id", runID)) }
	}
}

// WithBotOptions passes options to every bot the runner creates.
func WithBotOptions(opts ...bot.Option) RunnerOption {
	return func(r *Runner) { r.botOpts = append(r.botOpts, opts...) }
}

// NewRunner creates a runner. cfg must already be validated.
func NewRunner(cfg *config.Config, factory SessionFactory, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:     cfg,
		factory: factory,
		sem:     semaphore.NewWeighted(int64(max(cfg.Server.MaxConcurrentRuns, 1))),
		logger:  observability.ForRun,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Profile composes the run's profile from the configured one and the request.
func (r *Runner) Profile(req Request) bot.Profile {
	p := bot.ProfileFromConfig(r.cfg.Profile)
	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&p.Username, req.Username)
	override(&p.FirstName, req.FirstName)
	override(&p.LastName, req.LastName)
	override(&p.Address, req.Address)
	return p
}

// Run performs login or registration, then searches and selects the record. It
// never returns diagnostic detail: failures are reported as generic text with
// Success false.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	res := Result{RunID: uuid.NewString()}
	log := r.logger(res.RunID)

	p := r.Profile(req)
	if err := p.Validate(); err != nil {
		log.Warn("Rejected run.", zap.Error(err))
		res.Text = msgCredentials
		return res
	}
	q := bot.SearchQuery{RecordID: req.RecordID, FullName: req.FullName()}
	if err := q.Validate(); err != nil {
		log.Warn("Rejected run.", zap.Error(err))
		res.Text = msgQuery
		return res
	}

	err := r.withBot(ctx, log, func(ctx context.Context, b *bot.Bot) error {
		ok, err := b.LoginOrRegister(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			res.Text = "Could not sign in or register the account."
			return nil
		}
		if ok, err = b.PreparePayment(ctx, p, q); err != nil {
			return err
		}
		if !ok {
			res.Text = fmt.Sprintf("No matching record found for %s.", describe(q))
			return nil
		}
		res.Text = fmt.Sprintf("Record found for %s. The payment page is ready; no transaction was submitted.", describe(q))
		res.Success = true
		return nil
	})
	switch {
	case errors.Is(err, errBusy):
		res.Text, res.Success = msgBusy, false
	case err != nil:
		log.Error("Run failed.", zap.Error(err))
		res.Text, res.Success = msgFailed, false
	default:
		log.Info("Run finished.", zap.Bool("success", res.Success))
	}
	return res
}

var errBusy = errors.New("no run slot available")

func describe(q bot.SearchQuery) string {
	if q.FullName != "" {
		return q.FullName
	}
	return "record " + q.RecordID
}

// Discover signs in with the configured profile and sweeps every state and agency
// for records matching name.
func (r *Runner) Discover(ctx context.Context, username, name string, maxResults int) ([]bot.SearchResult, error) {
	runID := uuid.NewString()
	log := r.logger(runID)

	p := r.Profile(Request{Username: username})
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var results []bot.SearchResult
	err := r.withBot(ctx, log, func(ctx context.Context, b *bot.Bot) error {
		ok, err := b.LoginOrRegister(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("Continuing discovery without an authenticated session.")
		}
		results, err = b.FindByName(ctx, name, maxResults)
		return err
	})
	if errors.Is(err, errBusy) {
		return nil, errors.New(msgBusy)
	}
	return results, err
}

// withBot acquires a run slot, opens a session bounded by the run timeout and hands a
// bot to fn. The session is always closed.
func (r *Runner) withBot(ctx context.Context, log *zap.Logger, fn func(context.Context, *bot.Bot) error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		log.Warn("No run slot available.", zap.Error(err))
		return errBusy
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Server.RunTimeout)
	defer cancel()

	log.Info("Run started.")
	browser, err := r.factory.Create(ctx, r.cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer browser.Close()

	b, err := bot.New(browser, r.cfg, append([]bot.Option{bot.WithLogger(log)}, r.botOpts...)...)
	if err != nil {
		return err
	}
	return fn(ctx, b)
}
