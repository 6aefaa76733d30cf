// Package stealth makes the automated Chrome tab look like a regular user's browser.
package stealth

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/config"
)

// EvasionsJS is evaluated on every new document before any page script runs.
var EvasionsJS = rodstealth.JS

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona provides a realistic default browser profile.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/Chicago",
	Locale:    "en-US",
}

// PersonaFromConfig overlays the configured browser identity on DefaultPersona.
func PersonaFromConfig(cfg config.BrowserConfig) Persona {
	p := DefaultPersona
	if cfg.UserAgent != "" {
		p.UserAgent = cfg.UserAgent
	}
	if cfg.Timezone != "" {
		p.Timezone = cfg.Timezone
	}
	if cfg.Locale != "" {
		p.Locale = cfg.Locale
		lang := strings.SplitN(cfg.Locale, "-", 2)[0]
		p.Languages = []string{cfg.Locale, lang}
	}
	return p
}

// AcceptLanguage renders the persona's languages as an Accept-Language header value.
func (p Persona) AcceptLanguage() string {
	if len(p.Languages) == 0 {
		return "en-US"
	}
	parts := []string{p.Languages[0]}
	for i, l := range p.Languages[1:] {
		q := 0.9 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", l, q))
	}
	return strings.Join(parts, ",")
}

// Apply returns the CDP actions that install the persona and the evasion script.
// With withEvasions false only the identity overrides are applied.
func Apply(p Persona, withEvasions bool, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("timezone", p.Timezone),
		zap.Bool("evasions", withEvasions),
	)

	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).WithAcceptLanguage(p.AcceptLanguage()),
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": p.AcceptLanguage()}),
	}
	if withEvasions && EvasionsJS != "" {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			// AddScriptToEvaluateOnNewDocument returns an identifier as well as an error.
			if _, err := page.AddScriptToEvaluateOnNewDocument(EvasionsJS).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}))
	}
	return tasks
}
