// internal/bot/signup.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/classifier"
	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// Texts and selectors of the personal information step.
const (
	TermsText        = "I accept the user agreement and terms and conditions"
	noMiddleNameText = "Check if no middle name"

	emailDataID        = "[data-id='awctstel_personalInfo_email_textfield']"
	confirmEmailDataID = "[data-id='awctstel_personalInfo_confirmEmail_textfield']"
	checkboxSelector   = "input[type='checkbox']"
)

// maxConfirmEmailRetries bounds the retype attempts after the first one.
const maxConfirmEmailRetries = 1

// signupState carries what the personal information step learned into its gate.
type signupState struct {
	email      string
	terms      termsResult
	remediated bool
}

// termsStep identifies which link of the terms chain produced the final state.
type termsStep int

const (
	termsNotFound termsStep = iota
	termsDirect
	termsRole
	termsLabel
	termsForced
)

func (s termsStep) String() string {
	switch s {
	case termsDirect:
		return "direct"
	case termsRole:
		return "role"
	case termsLabel:
		return "label"
	case termsForced:
		return "forced"
	}
	return "none"
}

// termsResult is the truthful outcome of the terms chain.
type termsResult struct {
	Step    termsStep
	Checked bool
}

func (b *Bot) fillPersonalInfo(ctx context.Context, p Profile, st *signupState) error {
	step := stepPersonalInfo
	if _, _, err := b.await(ctx, b.cfg.Timeouts.StepSettle, locator.ByLabel("First Name *")); err != nil {
		return b.classify(ctx, step, err)
	}
	b.stepOK(step, "Filling personal information.")

	if _, err := b.fill(ctx, step, p.FirstName, locator.ByLabel("First Name *")); err != nil {
		return err
	}
	if err := b.convergeNoMiddleName(ctx, p.MiddleName == ""); err != nil {
		return err
	}
	if p.MiddleName != "" {
		if _, err := b.fill(ctx, step, p.MiddleName, locator.ByLabel("Middle Name *")); err != nil {
			return err
		}
	}
	if _, err := b.fill(ctx, step, p.LastName, locator.ByLabel("Last Name *")); err != nil {
		return err
	}
	if _, err := b.fill(ctx, step, p.DateOfBirth, locator.ByLabel("Date of Birth *")); err != nil {
		return err
	}
	if _, err := b.fill(ctx, step, p.Phone, locator.ByLabel("Phone *")); err != nil {
		return err
	}
	// The data-id is stable where the label collides with "Confirm Email *".
	if _, err := b.fill(ctx, step, st.email, locator.ByCSS(emailDataID), locator.ByLabel("Email *")); err != nil {
		return err
	}
	_, err := b.confirmEmail(ctx, st.email)
	return err
}

// convergeNoMiddleName drives the "no middle name" toggle to want. Clicking is
// conditional on the current state, so repeated calls are idempotent.
func (b *Bot) convergeNoMiddleName(ctx context.Context, want bool) error {
	step := stepPersonalInfo
	toggle, ok, err := b.find(ctx, locator.ByText(noMiddleNameText))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if !ok {
		b.stepWarn(step, "No middle name toggle not shown.")
		return nil
	}
	checked, err := b.driver.IsChecked(ctx, toggle)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if checked == want {
		return nil
	}
	if err := b.driver.Click(ctx, toggle); err != nil {
		return b.classify(ctx, step, err)
	}
	if checked, err = b.driver.IsChecked(ctx, toggle); err != nil {
		return b.classify(ctx, step, err)
	}
	if checked != want {
		b.stepWarn(step, "No middle name toggle did not change.", zap.Bool("want", want))
		return nil
	}
	b.stepOK(step, "No middle name toggle set.", zap.Bool("checked", checked))
	return nil
}

// confirmEmail types the confirmation character by character, because the site
// rejects pasted values, and verifies the result. It retypes at most once. The bool
// reports whether the field ended up matching.
func (b *Bot) confirmEmail(ctx context.Context, email string) (bool, error) {
	step := stepPersonalInfo
	field, ok, err := b.find(ctx,
		locator.ByCSS(confirmEmailDataID),
		locator.ByLabel("Confirm Email *"),
		locator.ByLabel("Confirm Email"),
		locator.ByCSS("input[placeholder*='Confirm'][type='email'], input[name*='confirm'][type='email']"),
	)
	if err != nil {
		return false, b.classify(ctx, step, err)
	}
	if !ok {
		b.stepWarn(step, "Confirm email field not found.")
		return false, nil
	}

	if err := b.driver.Fill(ctx, field, ""); err != nil {
		return false, b.classify(ctx, step, err)
	}
	if err := b.tolerate(ctx, step, b.driver.Click(ctx, field)); err != nil {
		return false, err
	}
	for attempt := 0; attempt <= maxConfirmEmailRetries; attempt++ {
		if err := b.driver.TypeText(ctx, field, email, b.cfg.Timeouts.TypeDelay); err != nil {
			return false, b.classify(ctx, step, err)
		}
		got, err := b.driver.InputValue(ctx, field)
		if err != nil {
			return false, b.classify(ctx, step, err)
		}
		if strings.EqualFold(got, email) {
			return true, nil
		}
		b.stepWarn(step, "Confirm email mismatch.", zap.Int("attempt", attempt+1))
	}
	return false, nil
}

// nearTermsText finds the checkbox in the container of the terms text. When the
// immediate container has none it widens one level, but only to a container holding a
// single checkbox, so a sibling control such as the no middle name toggle is never
// taken for the terms box.
func nearTermsText() locator.Strategy {
	return locator.Func("checkbox near terms text", func(ctx context.Context, page locator.Page) (locator.Match, error) {
		label, err := locator.Resolve(ctx, page, locator.ByText(TermsText))
		if errors.Is(err, locator.ErrNotFound) {
			return locator.Match{}, nil
		}
		if err != nil {
			return locator.Match{}, err
		}
		m, err := locator.InParentOf(label.Element, locator.ByCSS(checkboxSelector)).Probe(ctx, page)
		if err != nil || m.Count > 0 {
			return m, err
		}
		m, err = locator.InAncestorOf(label.Element, 2, locator.ByCSS(checkboxSelector)).Probe(ctx, page)
		if err != nil || m.Count != 1 {
			return locator.Match{}, err
		}
		return m, nil
	})
}

// termsBox lists the ways of reaching the checkbox that belongs to the terms text.
func termsBox() []locator.Strategy {
	return []locator.Strategy{locator.ByLabel(TermsText), nearTermsText()}
}

// acceptTerms runs the escalating chain and stops at the first link that leaves the
// box checked. It never runs more than the four links.
func (b *Bot) acceptTerms(ctx context.Context) (termsResult, error) {
	step := stepTerms
	b.stepOK(step, "Accepting terms and conditions.")

	links := []struct {
		step termsStep
		run  func(context.Context) (bool, error)
	}{
		{termsDirect, func(ctx context.Context) (bool, error) {
			return b.checkFirst(ctx,
				locator.ByCSSWithText(checkboxSelector, TermsText),
				nearTermsText(),
				locator.ByCSS("input[type='checkbox'][name*='terms'], input[type='checkbox'][name*='agreement'], input[type='checkbox'][id*='terms']"),
			)
		}},
		{termsRole, func(ctx context.Context) (bool, error) {
			return b.checkFirst(ctx,
				locator.ByRoleExact("checkbox", TermsText),
				locator.ByRolePattern("checkbox", "I accept.*terms"),
			)
		}},
		{termsLabel, b.clickTermsLabel},
		{termsForced, b.forceTerms},
	}

	res := termsResult{}
	for _, link := range links {
		checked, err := link.run(ctx)
		if err != nil {
			return res, err
		}
		res = termsResult{Step: link.step, Checked: checked}
		if checked {
			b.stepOK(step, "Terms accepted.", zap.Stringer("via", link.step))
			return res, nil
		}
		b.stepWarn(step, "Terms checkbox still unchecked.", zap.Stringer("after", link.step))
	}
	b.stepWarn(step, "Unable to set terms checkbox.")
	return res, nil
}

// checkFirst checks the first resolvable checkbox. Recoverable failures read as false.
func (b *Bot) checkFirst(ctx context.Context, strategies ...locator.Strategy) (bool, error) {
	box, ok, err := b.find(ctx, strategies...)
	if err != nil || !ok {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	if err := b.driver.Check(ctx, box); err != nil {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	checked, err := b.driver.IsChecked(ctx, box)
	if err != nil {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	return checked, nil
}

// clickTermsLabel clicks the terms text and reads the checkbox that belongs to it.
func (b *Bot) clickTermsLabel(ctx context.Context) (bool, error) {
	label, ok, err := b.find(ctx, locator.ByText(TermsText))
	if err != nil || !ok {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	if err := b.driver.Click(ctx, label); err != nil {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	box, ok, err := b.find(ctx, termsBox()...)
	if err != nil || !ok {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	checked, err := b.driver.IsChecked(ctx, box)
	if err != nil {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	return checked, nil
}

// forceTerms sets the checked state directly and fires input and change events so the
// page's validation observes it.
func (b *Bot) forceTerms(ctx context.Context) (bool, error) {
	box, ok, err := b.find(ctx, termsBox()...)
	if err != nil || !ok {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	checked, err := b.driver.ForceCheck(ctx, box)
	if err != nil {
		return false, b.tolerate(ctx, stepTerms, err)
	}
	return checked, nil
}

// remediate retypes the confirmation email and clicks the terms label again. It runs
// at most once per registration.
func (b *Bot) remediate(ctx context.Context, st *signupState) error {
	if st.remediated {
		return nil
	}
	st.remediated = true
	b.stepWarn(stepSubmitInfo, "Remediating personal information form.")

	if _, err := b.confirmEmail(ctx, st.email); err != nil {
		if IsFatal(err) {
			return err
		}
	}
	label, ok, err := b.find(ctx, locator.ByText(TermsText))
	if err != nil || !ok {
		return b.tolerate(ctx, stepSubmitInfo, err)
	}
	if err := b.tolerate(ctx, stepSubmitInfo, b.driver.Click(ctx, label)); err != nil {
		return err
	}
	return b.pause(ctx, reactPause)
}

func nextButton() []locator.Strategy {
	return []locator.Strategy{
		locator.ByRole("button", "NEXT"),
		locator.ByText("NEXT"),
		locator.ByCSSWithText("button", "NEXT"),
	}
}

// errorMarkers counts the inline validation markers on the page.
func (b *Bot) errorMarkers(ctx context.Context) (int, error) {
	return b.driver.Count(ctx, locator.Query{Kind: locator.KindCSS, Selector: classifier.ErrorMarkerSelector})
}

// submitPersonalInfo passes the NEXT gate. Visible errors fail the step at once;
// otherwise a disabled NEXT gets one remediation pass before the step fails.
func (b *Bot) submitPersonalInfo(ctx context.Context, st *signupState) error {
	step := stepSubmitInfo

	termsErr, err := b.classifier.Is(ctx, b.driver, classifier.StateTermsError)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if termsErr {
		b.stepWarn(step, "Terms error visible after accepting terms.", zap.Bool("checked", st.terms.Checked))
		if err := b.remediate(ctx, st); err != nil {
			return err
		}
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
		b.stepWarn(step, "NEXT is disabled, checking validation errors.")
		if termsErr, err = b.classifier.Is(ctx, b.driver, classifier.StateTermsError); err != nil {
			return b.classify(ctx, step, err)
		} else if termsErr {
			return b.fail(ctx, step, ErrCodeValidationBlocked, errors.New("terms and conditions error still present"))
		}
		n, err := b.errorMarkers(ctx)
		if err != nil {
			return b.classify(ctx, step, err)
		}
		if n > 0 {
			return b.fail(ctx, step, ErrCodeValidationBlocked, fmt.Errorf("found %d validation errors on the form", n))
		}
		if err := b.remediate(ctx, st); err != nil {
			return err
		}
		if enabled, err = b.driver.IsEnabled(ctx, next); err != nil {
			return b.classify(ctx, step, err)
		}
		if !enabled {
			return b.fail(ctx, step, ErrCodeValidationBlocked, errors.New("NEXT still disabled after remediation"))
		}
	}

	if err := b.driver.Click(ctx, next); err != nil {
		return b.classify(ctx, step, err)
	}
	invalid := locator.ByText(classifier.TextValidationError)
	m, ok, err := b.await(ctx, b.cfg.Timeouts.StepSettle, invalid, locator.ByText("Billing Address"), locator.ByLabel("Address *"))
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if ok && m.Strategy == invalid.Name() {
		return b.fail(ctx, step, ErrCodeValidationBlocked, errors.New("signup form validation failed"))
	}
	b.stepOK(step, "Personal information submitted.")
	return nil
}
