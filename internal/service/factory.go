// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/bot"
	"github.com/xkilldash9x/inmate-bot/internal/browser/session"
	"github.com/xkilldash9x/inmate-bot/internal/config"
)

// Browser is a driver that owns a browser tab and must be closed after the run.
type Browser interface {
	bot.Driver
	Close()
}

// SessionFactory creates the browser a single run drives. The abstraction keeps the
// runner testable without Chrome.
type SessionFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Browser, error)
}

// concreteFactory is the production implementation backed by chromedp.
type concreteFactory struct{}

// NewSessionFactory creates a factory that launches (or attaches to) Chrome.
func NewSessionFactory() SessionFactory {
	return &concreteFactory{}
}

// Create opens a new browser session. The session lives until Close or until ctx is
// cancelled.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Browser, error) {
	s, err := session.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser session: %w", err)
	}
	return s, nil
}
