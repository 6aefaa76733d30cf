// internal/bot/search.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

const (
	stepSendMoney = "send_money"
	stepRecipient = "recipient_unit"
	stepSearch    = "record_search"
	stepSelect    = "record_select"

	resultRowSelector    = "tbody tr, table tr"
	discoveryRowSelector = "tbody tr, table tr"
	comboSelector        = "select:has(option), [aria-label*='%s'], [role='combobox']"
)

func searchInput() []locator.Strategy {
	return []locator.Strategy{
		locator.ByCSS("input[placeholder*='Enter ID or Name']"),
		locator.ByRolePattern("textbox", "Enter ID or Name"),
	}
}

func searchButton() []locator.Strategy {
	return []locator.Strategy{
		locator.ByRole("button", "Search"),
		locator.ByCSSWithText("button", "Search"),
	}
}

// PreparePayment opens the send money flow, selects the state and agency from the
// profile, searches for the record and selects it. It stops before any payment is
// entered. It reports false with a nil error when no record could be selected.
func (b *Bot) PreparePayment(ctx context.Context, p Profile, q SearchQuery) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, &StepError{Step: stepSearch, Code: ErrCodeConfig, Err: err}
	}
	p = p.WithDefaults()
	return b.outcome(ctx, stepSearch, b.preparePayment(ctx, p, q))
}

func (b *Bot) preparePayment(ctx context.Context, p Profile, q SearchQuery) error {
	if err := b.openSendMoney(ctx); err != nil {
		return err
	}
	if err := b.chooseRecipientUnit(ctx, p); err != nil {
		return err
	}

	input, ok, err := b.find(ctx, searchInput()...)
	if err != nil {
		return b.classify(ctx, stepSearch, err)
	}
	if !ok {
		return b.fail(ctx, stepSearch, ErrCodeElementNotFound, errors.New("search input not found"))
	}

	found := false
	for _, query := range q.Attempts() {
		n, err := b.runSearch(ctx, input, query, resultRowSelector, b.cfg.Search.ResultTimeout)
		if err != nil {
			return err
		}
		b.logger.Info("Search attempt finished.", zap.String("step", stepSearch), zap.String("query", query), zap.Int("rows", n))
		if n > 0 {
			found = true
			break
		}
	}
	if !found {
		b.stepWarn(stepSearch, "No results after record id and name searches.",
			zap.String("record_id", q.RecordID), zap.String("name", q.FullName))
		return &StepError{Step: stepSearch, Code: ErrCodeElementNotFound, Err: errors.New("no results"), logged: true}
	}

	if err := b.selectRecord(ctx, q); err != nil {
		return err
	}
	b.stepOK(stepSelect, "Payment page prepared. Stopping before any transaction.",
		zap.String("name", q.FullName), zap.String("record_id", q.RecordID))
	return nil
}

// openSendMoney enters the send money flow from the home page, falling back to the
// direct URL when no entry control is shown.
func (b *Bot) openSendMoney(ctx context.Context) error {
	step := stepSendMoney
	if err := b.driver.Navigate(ctx, b.cfg.Site.HomeURL); err != nil {
		return b.fail(ctx, step, ErrCodeNavigationError, err)
	}
	entry, ok, err := b.find(ctx,
		locator.ByRole("link", "Send Money"),
		locator.ByRole("button", "Send Money"),
		locator.ByCSSWithText("a, button", "Send Money"),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		if err := b.driver.Click(ctx, entry); err != nil {
			return b.classify(ctx, step, err)
		}
	} else {
		b.stepWarn(step, "Send Money control not found, opening the page directly.", zap.String("url", b.cfg.Site.SendMoneyURL))
		if err := b.driver.Navigate(ctx, b.cfg.Site.SendMoneyURL); err != nil {
			return b.fail(ctx, step, ErrCodeNavigationError, err)
		}
	}

	_, ok, err = b.await(ctx, b.cfg.Timeouts.SendMoneyReady,
		locator.ByText("Send Money"),
		locator.ByCSS("select, [placeholder*='Enter ID or Name'], [role='combobox']"),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		b.stepWarn(step, "Send Money controls did not appear in time.")
	} else {
		b.stepOK(step, "Send Money page opened.")
	}
	return nil
}

func comboStrategies(label string, nth int) []locator.Strategy {
	css := locator.ByCSS(fmt.Sprintf(comboSelector, label))
	if nth > 0 {
		css = css.Nth(nth)
	}
	return []locator.Strategy{locator.ByLabel(label), css}
}

// chooseRecipientUnit selects the state and then the agency. The agency list depends
// on the state, so its control is awaited after the state is chosen.
func (b *Bot) chooseRecipientUnit(ctx context.Context, p Profile) error {
	step := stepRecipient
	pick := func(label, value string, nth int, wait bool) error {
		var (
			el  locator.Element
			ok  bool
			err error
		)
		if wait {
			var m locator.Match
			m, ok, err = b.await(ctx, b.cfg.Timeouts.StepSettle, comboStrategies(label, nth)...)
			el = m.Element
		} else {
			el, ok, err = b.find(ctx, comboStrategies(label, nth)...)
		}
		if err != nil {
			return b.classify(ctx, step, err)
		}
		if !ok {
			b.stepWarn(step, "Selector control not found, skipping.", zap.String("control", label))
			return nil
		}
		err = b.choose(ctx, el, dropdown{
			step:      step,
			value:     value,
			typeAhead: true,
			options: []locator.Strategy{
				locator.ByRole("option", value),
				locator.ByCSSWithText("li, div[role='option']", value),
			},
		})
		if err != nil {
			if IsFatal(err) {
				return err
			}
			b.stepWarn(step, "Could not choose option.", zap.String("control", label), zap.String("value", value), zap.Error(err))
			return nil
		}
		b.stepOK(step, "Option chosen.", zap.String("control", label), zap.String("value", value))
		return nil
	}

	if err := pick("State", p.State, 0, false); err != nil {
		return err
	}
	return pick("Agency", p.Agency, 1, true)
}

// runSearch types query into the search input, submits it and waits for result rows.
// It returns the number of rows matching rowSelector that mention query.
func (b *Bot) runSearch(ctx context.Context, input locator.Element, query, rowSelector string, timeout time.Duration) (int, error) {
	step := stepSearch
	if err := b.driver.Fill(ctx, input, ""); err != nil {
		return 0, b.classify(ctx, step, err)
	}
	if err := b.driver.TypeText(ctx, input, query, b.cfg.Timeouts.TypeDelay); err != nil {
		return 0, b.classify(ctx, step, err)
	}
	if err := b.driver.Press(ctx, input, "Enter"); err != nil {
		return 0, b.classify(ctx, step, err)
	}

	btn, ok, err := b.find(ctx, searchButton()...)
	if err != nil {
		return 0, b.classify(ctx, step, err)
	}
	if ok {
		if err := b.tolerate(ctx, step, b.driver.Click(ctx, btn)); err != nil {
			return 0, err
		}
	}

	m, ok, err := b.await(ctx, timeout, b.resultRows(rowSelector, query))
	if err != nil {
		return 0, b.classify(ctx, step, err)
	}
	if !ok {
		return 0, nil
	}
	return m.Count, nil
}

// resultRows matches the rows of rowSelector whose text mentions query. Rows left from
// an earlier search and tables unrelated to the search do not count.
func (b *Bot) resultRows(rowSelector, query string) locator.Strategy {
	rows := locator.ByCSS(rowSelector)
	return locator.Func(fmt.Sprintf("rows(%s) mentioning %q", rowSelector, query), func(ctx context.Context, page locator.Page) (locator.Match, error) {
		m, err := rows.Probe(ctx, page)
		if err != nil || m.Count == 0 {
			return locator.Match{}, err
		}
		html, err := b.driver.HTML(ctx)
		if err != nil {
			return locator.Match{}, err
		}
		parsed, err := ParseRows(html, rowSelector)
		if err != nil {
			return locator.Match{}, err
		}
		n := 0
		for _, r := range parsed {
			if MatchesName(r, query) {
				n++
			}
		}
		if n == 0 {
			return locator.Match{}, nil
		}
		m.Count = n
		return m, nil
	})
}

// selectRecord picks the preferred result row and activates it, then presses a Next
// button outside the row when the page shows one.
func (b *Bot) selectRecord(ctx context.Context, q SearchQuery) error {
	step := stepSelect
	html, err := b.driver.HTML(ctx)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	rows, err := ParseRows(html, "")
	if err != nil {
		return b.fail(ctx, step, ErrCodeUnexpectedState, err)
	}
	row, ok := SelectRow(rows, q)
	if !ok {
		return b.fail(ctx, step, ErrCodeElementNotFound, errors.New("could not find the record in the results"))
	}
	rowEl := locator.Element{Query: locator.Query{Kind: locator.KindCSS, Selector: "tr"}, Index: row.Index}
	b.stepOK(step, "Selecting record from results.", zap.Int("row", row.Index), zap.String("text", row.Text))

	action, ok, err := b.find(ctx,
		locator.Within(rowEl, locator.ByRolePattern("button", "^(select|continue|next|add)$")),
		locator.Within(rowEl, locator.ByCSSWithPattern("button, a", "select|continue|next")),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		action = rowEl
	}
	if err := b.driver.Click(ctx, action); err != nil {
		return b.classify(ctx, step, err)
	}
	// The row action re-renders the page before the Next button is attached.
	if err := b.pause(ctx, selectionPause); err != nil {
		return b.classify(ctx, step, err)
	}

	next, ok, err := b.await(ctx, b.cfg.Timeouts.StepSettle,
		locator.ByRole("button", "Next"),
		locator.ByCSSWithText("button, a", "Next"),
	)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok {
		return b.tolerate(ctx, step, b.driver.Click(ctx, next.Element))
	}
	return nil
}
