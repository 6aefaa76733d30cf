// Package session owns one Chrome tab driven over the DevTools protocol and exposes
// the element-level primitives the bot needs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/browser/stealth"
	"github.com/xkilldash9x/inmate-bot/internal/config"
)

// ErrSessionClosed is returned once the tab or the browser behind it has gone away.
var ErrSessionClosed = errors.New("browser session closed")

// Session is a single browser tab. It is not safe for concurrent use: one run drives
// one session sequentially.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         *config.Config
	closeOnce   sync.Once
}

// New launches (or attaches to) Chrome and opens a tab. The tab lives until Close is
// called or parent is cancelled.
func New(parent context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", id))

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if remote := strings.TrimSpace(cfg.Browser.RemoteURL); remote != "" {
		log.Info("Attaching to remote browser.", zap.String("url", remote))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, remote)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocatorOptions(cfg.Browser)...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Sugar().Debugf))
	s := &Session{
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      log,
		cfg:         cfg,
	}

	// The first Run allocates the browser and ties its lifetime to the context it is
	// given, so it runs on the tab context itself and never on a derived timeout.
	if err := chromedp.Run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(parent, cfg.Timeouts.Navigation)
	defer startCancel()
	persona := stealth.PersonaFromConfig(cfg.Browser)
	if err := s.RunActions(startCtx, stealth.Apply(persona, cfg.Browser.Stealth, log)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to apply browser persona: %w", err)
	}

	log.Info("Browser session started.", zap.Bool("headless", cfg.Browser.Headless), zap.Bool("stealth", cfg.Browser.Stealth))
	return s, nil
}

func allocatorOptions(b config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("disable-gpu", b.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if b.WindowWidth > 0 && b.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(b.WindowWidth, b.WindowHeight))
	}
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	if b.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.UserDataDir))
	}
	for _, arg := range b.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Close terminates the tab and, when it was launched locally, the browser.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session.")
		s.cancel()
		s.allocCancel()
	})
}

// Alive reports whether the tab still answers CDP calls.
func (s *Session) Alive(ctx context.Context) bool {
	if s.ctx.Err() != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var one int
	return s.RunActions(probeCtx, chromedp.Evaluate(`1`, &one)) == nil && one == 1
}

// RunActions executes chromedp actions against the tab, bounded by ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return contextError(ctx, s.ctx, err)
	}
	return nil
}

// Sleep pauses for d unless ctx or the session ends first.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}
