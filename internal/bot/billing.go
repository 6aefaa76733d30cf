// internal/bot/billing.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

const (
	autocompleteSelector = "[role='listbox'], ul[role='presentation']"
	stateControlSelector = "input, div[role='combobox'], [role='button'][aria-haspopup='listbox'], select"
	suggestedAddressText = "Suggested Address"
)

// stateControl resolves the billing state control by label, then by the label's for
// attribute, then inside the label's container.
func (b *Bot) stateControl() []locator.Strategy {
	stateLabel := locator.ByCSSWithText("label", "State")
	return []locator.Strategy{
		locator.ByLabel("State *"),
		locator.Func("label[for] target", func(ctx context.Context, page locator.Page) (locator.Match, error) {
			label, err := locator.Resolve(ctx, page, stateLabel)
			if errors.Is(err, locator.ErrNotFound) {
				return locator.Match{}, nil
			} else if err != nil {
				return locator.Match{}, err
			}
			id, err := b.driver.Attribute(ctx, label.Element, "for")
			if errors.Is(err, locator.ErrNotFound) || id == "" {
				return locator.Match{}, nil
			} else if err != nil {
				return locator.Match{}, err
			}
			return locator.ByCSS(fmt.Sprintf("[id=%q]", id)).Probe(ctx, page)
		}),
		locator.Func("label container", func(ctx context.Context, page locator.Page) (locator.Match, error) {
			label, err := locator.Resolve(ctx, page, stateLabel)
			if errors.Is(err, locator.ErrNotFound) {
				return locator.Match{}, nil
			} else if err != nil {
				return locator.Match{}, err
			}
			return locator.InParentOf(label.Element, locator.ByCSS(stateControlSelector)).Probe(ctx, page)
		}),
	}
}

// fillBilling completes the billing address step and submits it.
func (b *Bot) fillBilling(ctx context.Context, p Profile) error {
	step := stepBilling
	if _, ok, err := b.await(ctx, b.cfg.Timeouts.StepSettle, locator.ByText("Billing Address"), locator.ByLabel("Address *")); err != nil {
		return b.classify(ctx, step, err)
	} else if !ok {
		b.stepWarn(step, "Billing address step not detected, trying its fields anyway.")
	}

	addr, err := b.fill(ctx, step, p.Address, locator.ByLabel("Address *"), locator.ByCSS("input[placeholder*='Address']"))
	if err != nil {
		return err
	}
	if err := b.pickAutocomplete(ctx, addr); err != nil {
		return err
	}

	city, err := b.fill(ctx, step, p.City, locator.ByLabel("City *"), locator.ByCSS("input[placeholder*='City']"))
	if err != nil {
		return err
	}
	// Enter dismisses the city autocomplete so it does not hold focus.
	if err := b.tolerate(ctx, step, b.driver.Press(ctx, city, "Enter")); err != nil {
		return err
	}

	state, ok, err := b.find(ctx, b.stateControl()...)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		err := b.choose(ctx, state, dropdown{
			step:       step,
			value:      p.State,
			valueFirst: true,
			options: []locator.Strategy{
				locator.ByRole("option", p.State),
				locator.ByTextExact(p.State),
			},
		})
		if err != nil {
			return err
		}
	} else {
		b.stepWarn(step, "Could not locate State control, skipping selection.")
	}

	zip, err := b.fill(ctx, step, p.Zip, locator.ByLabel("Zip Code *"), locator.ByCSS("input[placeholder*='Zip']"))
	if err != nil {
		return err
	}
	if err := b.tolerate(ctx, step, b.driver.Press(ctx, zip, "Enter")); err != nil {
		return err
	}

	next, ok, err := b.find(ctx, nextButton()...)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		return b.fail(ctx, step, ErrCodeElementNotFound, errors.New("NEXT button not found"))
	}
	enabled, err := b.driver.IsEnabled(ctx, next)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !enabled {
		n, err := b.errorMarkers(ctx)
		if err != nil {
			return b.classify(ctx, step, err)
		}
		b.stepWarn(step, "NEXT disabled on billing address, clicking anyway.", zap.Int("validation_errors", n))
	}
	if err := b.driver.Click(ctx, next); err != nil {
		return b.classify(ctx, step, err)
	}
	b.stepOK(step, "Billing address submitted.")

	return b.confirmSuggestedAddress(ctx)
}

// pickAutocomplete selects the first address suggestion when the list appears.
func (b *Bot) pickAutocomplete(ctx context.Context, field locator.Element) error {
	step := stepBilling
	_, ok, err := b.await(ctx, b.cfg.Timeouts.Dialog, locator.ByCSS(autocompleteSelector))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		b.logger.Debug("No address suggestions shown.")
		return nil
	}
	opt, ok, err := b.find(ctx, locator.ByRole("option", ""))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		return b.tolerate(ctx, step, b.driver.Click(ctx, opt))
	}
	if err := b.tolerate(ctx, step, b.driver.Press(ctx, field, "ArrowDown")); err != nil {
		return err
	}
	return b.tolerate(ctx, step, b.driver.Press(ctx, field, "Enter"))
}

// confirmSuggestedAddress accepts the postal service suggestion when the dialog shows.
func (b *Bot) confirmSuggestedAddress(ctx context.Context) error {
	step := stepAddressCheck
	_, ok, err := b.await(ctx, b.cfg.Timeouts.Dialog,
		locator.ByText(suggestedAddressText),
		locator.ByRole("dialog", suggestedAddressText),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		b.logger.Debug("No suggested address dialog.")
		return nil
	}
	b.stepOK(step, "Suggested Address dialog detected, selecting the suggestion.")

	radio, ok, err := b.find(ctx,
		locator.Func("radio near suggestion", func(ctx context.Context, page locator.Page) (locator.Match, error) {
			col, err := locator.Resolve(ctx, page, locator.ByText(suggestedAddressText))
			if errors.Is(err, locator.ErrNotFound) {
				return locator.Match{}, nil
			} else if err != nil {
				return locator.Match{}, err
			}
			return locator.InParentOf(col.Element, locator.ByCSS("input[type='radio']")).Probe(ctx, page)
		}),
		locator.ByCSS("input[type='radio']").Last(),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		if err := b.driver.Check(ctx, radio); err != nil {
			if err := b.tolerate(ctx, step, b.driver.Click(ctx, radio)); err != nil {
				return err
			}
		}
	}

	cont, ok, err := b.find(ctx, locator.ByRole("button", "CONTINUE"), locator.ByText("CONTINUE"))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		return b.tolerate(ctx, step, b.driver.Click(ctx, cont))
	}
	return nil
}

// createPassword fills the password step and presses DONE.
func (b *Bot) createPassword(ctx context.Context, p Profile) error {
	step := stepPassword
	_, ok, err := b.await(ctx, b.cfg.Timeouts.StepSettle, locator.ByText("Create Password"), locator.ByLabel("Password *"))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		return b.fail(ctx, step, ErrCodeTimeoutError, errors.New("create password step not reached"))
	}
	b.stepOK(step, "Reached Create Password step.")

	if _, err := b.fill(ctx, step, p.Password, locator.ByLabel("Password *"), locator.ByCSS("input[type='password']")); err != nil {
		return err
	}
	confirm, err := b.fill(ctx, step, p.Password, locator.ByLabel("Confirm Password *"), locator.ByCSS("input[type='password']").Nth(1))
	if err != nil {
		return err
	}

	done, ok, err := b.find(ctx,
		locator.ByRole("button", "DONE"),
		locator.ByText("DONE"),
		locator.ByCSSWithText("button", "DONE"),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		b.stepWarn(step, "DONE button not found.")
		return nil
	}
	enabled, err := b.driver.IsEnabled(ctx, done)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !enabled {
		// Leaving the confirmation field runs the form validation.
		if err := b.tolerate(ctx, step, b.driver.Press(ctx, confirm, "Tab")); err != nil {
			return err
		}
		if err := b.pause(ctx, reactPause); err != nil {
			return b.classify(ctx, step, err)
		}
	}
	if err := b.driver.Click(ctx, done); err != nil {
		return b.classify(ctx, step, err)
	}
	return nil
}
