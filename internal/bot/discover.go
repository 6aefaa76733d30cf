// internal/bot/discover.go
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

const stepDiscover = "discover"

func selectAt(i int) locator.Element {
	return locator.Element{Query: locator.Query{Kind: locator.KindCSS, Selector: "select"}, Index: i}
}

// FindByName searches every state and agency combination for records matching name and
// returns at most maxResults of them. A maxResults of zero or less uses the configured cap.
// Iterations are paced by the bot's limiter and stop as soon as the cap is reached.
//
// Failures of a single combination are logged and skipped. Fatal errors end the sweep
// and are returned together with the results gathered so far.
func (b *Bot) FindByName(ctx context.Context, name string, maxResults int) ([]SearchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &StepError{Step: stepDiscover, Code: ErrCodeConfig, Err: ErrEmptyQuery}
	}
	if maxResults <= 0 {
		maxResults = b.cfg.Search.MaxResults
	}
	results, err := b.findByName(ctx, name, maxResults)
	if err != nil && IsFatal(err) {
		b.logFailure(ctx, b.classify(ctx, stepDiscover, err))
		return results, err
	}
	b.stepOK(stepDiscover, "Discovery finished.", zap.String("name", name), zap.Int("results", len(results)))
	return results, nil
}

func (b *Bot) findByName(ctx context.Context, name string, maxResults int) ([]SearchResult, error) {
	step := stepDiscover
	if err := b.driver.Navigate(ctx, b.cfg.Site.SendMoneyURL); err != nil {
		return nil, b.fail(ctx, step, ErrCodeNavigationError, err)
	}
	_, ok, err := b.await(ctx, b.cfg.Timeouts.DiscoveryReady, locator.ByCSS("select, [placeholder*='Enter ID or Name']"))
	if err != nil {
		return nil, b.classify(ctx, step, err)
	}
	if !ok {
		b.stepWarn(step, "Send Money page did not become ready.")
		return nil, nil
	}
	n, err := b.driver.Count(ctx, selectAt(0).Query)
	if err != nil {
		return nil, b.classify(ctx, step, err)
	}
	if n < 1 {
		b.stepWarn(step, "No state selector on the page, nothing to iterate.")
		return nil, nil
	}

	states, err := b.selectOptions(ctx, 0)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, state := range states {
		if skipOption(state) {
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return results, b.classify(ctx, step, err)
		}
		if err := b.driver.SelectByLabel(ctx, selectAt(0), state); err != nil {
			if err := b.tolerate(ctx, step, err); err != nil {
				return results, err
			}
			continue
		}
		agencies, err := b.waitForOptions(ctx, 1, b.cfg.Timeouts.StepSettle)
		if err != nil {
			return results, err
		}
		b.logger.Debug("Iterating agencies.", zap.String("state", state), zap.Int("agencies", len(agencies)))

		for _, agency := range agencies {
			if skipOption(agency) {
				continue
			}
			found, err := b.searchAgency(ctx, state, agency, name, maxResults-len(results))
			results = append(results, found...)
			if err != nil {
				if IsFatal(err) {
					return results, err
				}
				b.stepWarn(step, "Agency search failed, moving on.", zap.String("state", state), zap.String("agency", agency), zap.Error(err))
			}
			if len(results) >= maxResults {
				b.logger.Info("Result cap reached.", zap.Int("max_results", maxResults))
				return results, nil
			}
		}
	}
	return results, nil
}

// searchAgency selects agency, searches name and returns up to limit matching rows.
func (b *Bot) searchAgency(ctx context.Context, state, agency, name string, limit int) ([]SearchResult, error) {
	step := stepDiscover
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, b.classify(ctx, step, err)
	}
	if err := b.driver.SelectByLabel(ctx, selectAt(1), agency); err != nil {
		return nil, b.classify(ctx, step, err)
	}
	input, ok, err := b.find(ctx, searchInput()...)
	if err != nil {
		return nil, b.classify(ctx, step, err)
	}
	if !ok {
		return nil, &StepError{Step: step, Code: ErrCodeElementNotFound, Err: locator.ErrNotFound}
	}
	n, err := b.runSearch(ctx, input, name, discoveryRowSelector, b.cfg.Search.ResultTimeout)
	if err != nil || n == 0 {
		return nil, err
	}

	html, err := b.driver.HTML(ctx)
	if err != nil {
		return nil, b.classify(ctx, step, err)
	}
	rows, err := ParseRows(html, discoveryRowSelector)
	if err != nil {
		return nil, &StepError{Step: step, Code: ErrCodeUnexpectedState, Err: err}
	}

	var out []SearchResult
	for _, r := range rows {
		if len(out) >= limit {
			break
		}
		if !MatchesName(r, name) {
			continue
		}
		out = append(out, SearchResult{
			State:      state,
			Agency:     agency,
			InmateName: rowName(r, name),
			InmateID:   ExtractIdentifier(r.Cells, b.cfg.Search.MinIDDigits),
		})
	}
	return out, nil
}

// rowName returns the cell carrying the name, or the whole row text.
func rowName(r Row, name string) string {
	for _, c := range r.Cells {
		if containsFold(c, strings.TrimSpace(name)) || containsFold(c, token(name, 0)) {
			return c
		}
	}
	return r.Text
}

// selectOptions reads the option labels of the n-th select from the current page.
func (b *Bot) selectOptions(ctx context.Context, n int) ([]string, error) {
	html, err := b.driver.HTML(ctx)
	if err != nil {
		return nil, b.classify(ctx, stepDiscover, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &StepError{Step: stepDiscover, Code: ErrCodeUnexpectedState, Err: err}
	}
	return optionTexts(doc, n), nil
}

// waitForOptions polls until the n-th select offers a real option or timeout elapses.
// The agency list is loaded after a state is chosen. An empty list is not an error.
func (b *Bot) waitForOptions(ctx context.Context, n int, timeout time.Duration) ([]string, error) {
	deadline := time.Now().Add(timeout)
	for {
		opts, err := b.selectOptions(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, o := range opts {
			if !skipOption(o) {
				return opts, nil
			}
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		if err := b.pause(ctx, locator.PollInterval); err != nil {
			return nil, b.classify(ctx, stepDiscover, err)
		}
	}
}
