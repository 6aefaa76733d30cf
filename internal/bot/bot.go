// internal/bot/bot.go
// Package bot drives the Access Corrections site: login or registration, then record
// search and selection up to (never past) the payment form, and bulk discovery of
// records by name.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/inmate-bot/internal/classifier"
	"github.com/xkilldash9x/inmate-bot/internal/config"
	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// Short pauses for UI reactions that expose no observable completion signal.
const (
	reactPause     = 300 * time.Millisecond
	selectionPause = 500 * time.Millisecond
)

// Bot runs the site flows against one Driver. A Bot is used by one run at a time.
type Bot struct {
	driver     Driver
	cfg        *config.Config
	classifier *classifier.Classifier
	logger     *zap.Logger
	limiter    *rate.Limiter
	pause      func(ctx context.Context, d time.Duration) error
}

// Option configures a Bot.
type Option func(*Bot)

// WithClassifier replaces the page state rules.
func WithClassifier(c *classifier.Classifier) Option {
	return func(b *Bot) { b.classifier = c }
}

// WithLogger sets the logger. The bot names it "bot".
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithLimiter replaces the limiter that paces bulk discovery.
func WithLimiter(l *rate.Limiter) Option {
	return func(b *Bot) { b.limiter = l }
}

// New creates a Bot. The configuration must already be validated.
func New(driver Driver, cfg *config.Config, opts ...Option) (*Bot, error) {
	if driver == nil {
		return nil, errors.New("bot: driver must not be nil")
	}
	if cfg == nil {
		return nil, errors.New("bot: config must not be nil")
	}
	// A zero discovery rate disables pacing.
	limit := rate.Inf
	if cfg.Search.DiscoveryRate > 0 {
		limit = rate.Limit(cfg.Search.DiscoveryRate)
	}
	b := &Bot{
		driver:     driver,
		cfg:        cfg,
		classifier: classifier.Default(),
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(limit, max(cfg.Search.DiscoveryBurst, 1)),
		pause:      sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.classifier.Validate(); err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	b.logger = b.logger.Named("bot")
	return b, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -- Resolution helpers --

// find resolves the first matching strategy. A miss is reported as ok=false, only page
// errors are returned.
func (b *Bot) find(ctx context.Context, strategies ...locator.Strategy) (locator.Element, bool, error) {
	m, err := locator.Resolve(ctx, b.driver, strategies...)
	if errors.Is(err, locator.ErrNotFound) {
		return locator.Element{}, false, nil
	}
	if err != nil {
		return locator.Element{}, false, err
	}
	b.logger.Debug("Resolved control.", zap.String("strategy", m.Strategy), zap.Int("matches", m.Count))
	return m.Element, true, nil
}

// await polls the strategies for up to timeout. A miss is ok=false.
func (b *Bot) await(ctx context.Context, timeout time.Duration, strategies ...locator.Strategy) (locator.Match, bool, error) {
	m, err := locator.WaitFor(ctx, b.driver, timeout, strategies...)
	if errors.Is(err, locator.ErrNotFound) {
		return locator.Match{}, false, nil
	}
	if err != nil {
		return locator.Match{}, false, err
	}
	return m, true, nil
}

// fill resolves a field and replaces its value. A missing field fails the step.
func (b *Bot) fill(ctx context.Context, step, value string, strategies ...locator.Strategy) (locator.Element, error) {
	el, ok, err := b.find(ctx, strategies...)
	if err != nil {
		return el, b.classify(ctx, step, err)
	}
	if !ok {
		return el, &StepError{Step: step, Code: ErrCodeElementNotFound, Err: fmt.Errorf("field not found: %w", locator.ErrNotFound)}
	}
	if err := b.driver.Fill(ctx, el, value); err != nil {
		return el, b.classify(ctx, step, err)
	}
	return el, nil
}

// tolerate swallows a non-fatal error of an optional action and logs it.
func (b *Bot) tolerate(ctx context.Context, step string, err error) error {
	if err == nil {
		return nil
	}
	se := b.classify(ctx, step, err)
	if se.Code.Fatal() {
		return se
	}
	b.logger.Debug("Optional action failed.", zap.String("step", step), zap.Error(err))
	return nil
}

// -- Status lines --

func (b *Bot) stepOK(step, msg string, fields ...zap.Field) {
	b.logger.Info(msg, append([]zap.Field{zap.String("step", step)}, fields...)...)
}

func (b *Bot) stepWarn(step, msg string, fields ...zap.Field) {
	b.logger.Warn(msg, append([]zap.Field{zap.String("step", step)}, fields...)...)
}

// fail logs the failure with the page location and returns it as a StepError.
func (b *Bot) fail(ctx context.Context, step string, code ErrorCode, err error) *StepError {
	se := &StepError{Step: step, Code: code, Err: err}
	b.logFailure(ctx, se)
	return se
}

func (b *Bot) logFailure(ctx context.Context, se *StepError) {
	if se.logged {
		return
	}
	se.logged = true
	fields := []zap.Field{zap.String("step", se.Step), zap.String("code", string(se.Code)), zap.Error(se.Err)}
	if !se.Code.Fatal() {
		if url, title, err := b.driver.Location(ctx); err == nil {
			fields = append(fields, zap.String("url", url), zap.String("title", title))
		}
	}
	b.logger.Error("Step failed.", fields...)
}

// outcome turns a flow error into the (success, error) pair returned to callers.
// Recoverable failures become false with a nil error.
func (b *Bot) outcome(ctx context.Context, step string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var se *StepError
	if !errors.As(err, &se) {
		se = b.classify(ctx, step, err)
	}
	b.logFailure(ctx, se)
	if se.Code.Fatal() || IsFatal(err) {
		return false, se
	}
	return false, nil
}
