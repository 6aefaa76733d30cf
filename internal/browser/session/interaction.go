// internal/browser/session/interaction.go
// High level page interactions: navigation, clicks, typing, key presses and form
// state. Every element operation re-resolves its locator.Element inside the page, so
// handles survive re-renders of the site's single page app.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// keys maps the key names the bot uses to chromedp key sequences.
var keys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"ArrowDown": kb.ArrowDown,
	"Delete":    kb.Delete,
	"Escape":    kb.Escape,
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Navigation)
	defer cancel()

	if err := s.RunActions(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, s.cfg.Timeouts.Navigation, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Click scrolls the element into view and clicks its center with a real mouse event.
// Elements without a layout box are clicked through the DOM instead.
func (s *Session) Click(ctx context.Context, el locator.Element) error {
	s.logger.Debug("Clicking element.", zap.Stringer("element", el))

	var p point
	if err := s.elementOp(ctx, el, "point", nil, &p); err != nil {
		return err
	}
	if p.W == 0 || p.H == 0 {
		return s.elementOp(ctx, el, "click", nil, nil)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()
	if err := s.RunActions(opCtx, chromedp.MouseClickXY(p.X, p.Y)); err != nil {
		return fmt.Errorf("click on %s failed: %w", el, err)
	}
	return nil
}

func (s *Session) focus(ctx context.Context, el locator.Element, selectAll bool) error {
	var focused bool
	if err := s.elementOp(ctx, el, "focus", map[string]bool{"select": selectAll}, &focused); err != nil {
		return err
	}
	if !focused {
		return fmt.Errorf("element %s could not be focused", el)
	}
	return nil
}

// Fill replaces the element's value the way a paste would: select the current content
// and insert the new text in a single input event.
func (s *Session) Fill(ctx context.Context, el locator.Element, value string) error {
	s.logger.Debug("Filling element.", zap.Stringer("element", el), zap.Int("length", len(value)))
	if err := s.focus(ctx, el, true); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()

	var action chromedp.Action = chromedp.KeyEvent(kb.Delete)
	if value != "" {
		action = chromedp.ActionFunc(func(ctx context.Context) error {
			return input.InsertText(value).Do(ctx)
		})
	}
	if err := s.RunActions(opCtx, action); err != nil {
		return fmt.Errorf("fill on %s failed: %w", el, err)
	}
	return nil
}

// TypeText clears the element, then types text one key at a time with delay between
// keystrokes. Pages that reject pasted values accept this.
func (s *Session) TypeText(ctx context.Context, el locator.Element, text string, delay time.Duration) error {
	s.logger.Debug("Typing into element.", zap.Stringer("element", el), zap.Int("length", len(text)))
	if err := s.Fill(ctx, el, ""); err != nil {
		return err
	}
	for _, r := range text {
		if err := s.RunActions(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("typing into %s failed: %w", el, err)
		}
		if err := s.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Press focuses the element and sends a named key (Enter, Tab, ArrowDown, Delete, Escape).
func (s *Session) Press(ctx context.Context, el locator.Element, key string) error {
	seq, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := s.focus(ctx, el, false); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()
	if err := s.RunActions(opCtx, chromedp.KeyEvent(seq)); err != nil {
		return fmt.Errorf("press %s on %s failed: %w", key, el, err)
	}
	return nil
}

// InputValue returns the current value of a form control (labels follow to their control).
func (s *Session) InputValue(ctx context.Context, el locator.Element) (string, error) {
	var v string
	err := s.elementOp(ctx, el, "value", nil, &v)
	return v, err
}

// IsChecked reports the checked state of a checkbox, radio or aria-checked control.
func (s *Session) IsChecked(ctx context.Context, el locator.Element) (bool, error) {
	var v bool
	err := s.elementOp(ctx, el, "checked", nil, &v)
	return v, err
}

// Check clicks an unchecked control and verifies that it became checked.
func (s *Session) Check(ctx context.Context, el locator.Element) error {
	checked, err := s.IsChecked(ctx, el)
	if err != nil || checked {
		return err
	}
	if err := s.Click(ctx, el); err != nil {
		return err
	}
	if checked, err = s.IsChecked(ctx, el); err != nil {
		return err
	}
	if !checked {
		return fmt.Errorf("element %s did not become checked", el)
	}
	return nil
}

// ForceCheck sets the checked state directly and dispatches input and change events.
// It returns the resulting state.
func (s *Session) ForceCheck(ctx context.Context, el locator.Element) (bool, error) {
	var v bool
	err := s.elementOp(ctx, el, "forceCheck", nil, &v)
	return v, err
}

// IsEnabled reports whether the control is neither disabled nor aria-disabled.
func (s *Session) IsEnabled(ctx context.Context, el locator.Element) (bool, error) {
	var v bool
	err := s.elementOp(ctx, el, "enabled", nil, &v)
	return v, err
}

// TagName returns the lower case tag name of the element.
func (s *Session) TagName(ctx context.Context, el locator.Element) (string, error) {
	var v string
	err := s.elementOp(ctx, el, "tag", nil, &v)
	return v, err
}

// Attribute returns an attribute value, or "" when it is absent.
func (s *Session) Attribute(ctx context.Context, el locator.Element, name string) (string, error) {
	var v *string
	if err := s.elementOp(ctx, el, "attr", name, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// InnerText returns the element's normalized rendered text.
func (s *Session) InnerText(ctx context.Context, el locator.Element) (string, error) {
	var v string
	err := s.elementOp(ctx, el, "text", nil, &v)
	return v, err
}

// SelectByLabel chooses the option of a native select whose label equals label.
// A missing option is reported as locator.ErrNotFound.
func (s *Session) SelectByLabel(ctx context.Context, el locator.Element, label string) error {
	return s.selectOption(ctx, el, "label", label)
}

// SelectByValue chooses the option of a native select whose value equals value.
func (s *Session) SelectByValue(ctx context.Context, el locator.Element, value string) error {
	return s.selectOption(ctx, el, "value", value)
}

func (s *Session) selectOption(ctx context.Context, el locator.Element, by, text string) error {
	var ok bool
	if err := s.elementOp(ctx, el, "select", map[string]string{"by": by, "text": text}, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option with %s %q in %s: %w", by, text, el, locator.ErrNotFound)
	}
	return nil
}

// HTML returns the serialized document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()
	err := s.RunActions(opCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

// Location returns the current URL and document title for diagnostics.
func (s *Session) Location(ctx context.Context) (url, title string, err error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()
	err = s.RunActions(opCtx, chromedp.Location(&url), chromedp.Title(&title))
	return url, title, err
}
