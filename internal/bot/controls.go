// internal/bot/controls.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// dropdown describes how to choose a value in a control that is either a native select
// or a custom listbox widget.
type dropdown struct {
	step  string
	value string
	// valueFirst tries the option value before its label on native selects.
	valueFirst bool
	// typeAhead clears the widget and types the value before looking for options.
	typeAhead bool
	// options locate the option to click once the widget is open.
	options []locator.Strategy
}

// choose sets d.value on the control el.
func (b *Bot) choose(ctx context.Context, el locator.Element, d dropdown) error {
	tag, err := b.driver.TagName(ctx, el)
	if err != nil {
		return b.classify(ctx, d.step, err)
	}
	if tag == "select" {
		return b.chooseNative(ctx, el, d)
	}
	return b.chooseCustom(ctx, el, d)
}

func (b *Bot) chooseNative(ctx context.Context, el locator.Element, d dropdown) error {
	first, second := b.driver.SelectByLabel, b.driver.SelectByValue
	if d.valueFirst {
		first, second = second, first
	}
	err := first(ctx, el, d.value)
	if errors.Is(err, locator.ErrNotFound) {
		err = second(ctx, el, d.value)
	}
	if err != nil {
		return b.classify(ctx, d.step, fmt.Errorf("select %q: %w", d.value, err))
	}
	b.logger.Debug("Selected native option.", zap.String("step", d.step), zap.String("value", d.value))
	return nil
}

func (b *Bot) chooseCustom(ctx context.Context, el locator.Element, d dropdown) error {
	if err := b.driver.Click(ctx, el); err != nil {
		return b.classify(ctx, d.step, err)
	}
	if d.typeAhead {
		if err := b.driver.Fill(ctx, el, ""); err != nil {
			return b.classify(ctx, d.step, err)
		}
		if err := b.driver.TypeText(ctx, el, d.value, b.cfg.Timeouts.TypeDelay); err != nil {
			return b.classify(ctx, d.step, err)
		}
	}

	opt, ok, err := b.find(ctx, d.options...)
	if err != nil {
		return b.classify(ctx, d.step, err)
	}
	if ok {
		if err := b.driver.Click(ctx, opt); err != nil {
			return b.classify(ctx, d.step, err)
		}
		b.logger.Debug("Clicked dropdown option.", zap.String("step", d.step), zap.String("value", d.value))
		return nil
	}

	// Keyboard fallback: type the value (unless already typed) and confirm.
	if !d.typeAhead {
		if err := b.driver.TypeText(ctx, el, d.value, b.cfg.Timeouts.TypeDelay); err != nil {
			return b.classify(ctx, d.step, err)
		}
	}
	if err := b.driver.Press(ctx, el, "Enter"); err != nil {
		return b.classify(ctx, d.step, err)
	}
	b.logger.Debug("Confirmed dropdown value with Enter.", zap.String("step", d.step), zap.String("value", d.value))
	return nil
}
