// internal/bot/login.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/classifier"
	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// Step names used in status lines and StepErrors.
const (
	stepStart        = "start"
	stepCookies      = "cookie_consent"
	stepSignIn       = "sign_in"
	stepSignUpEntry  = "sign_up_entry"
	stepPersonalInfo = "personal_info"
	stepTerms        = "terms"
	stepSubmitInfo   = "personal_info_submit"
	stepBilling      = "billing_address"
	stepAddressCheck = "address_confirmation"
	stepPassword     = "create_password"
	stepVerify       = "verify_login"
)

// LoginOrRegister signs in with the profile's credentials and registers a new account
// when the site rejects them. It reports whether the browser ends on an authenticated
// page. The error is non-nil only for faults that end the run: a lost session, a failed
// navigation, cancellation or an invalid profile.
func (b *Bot) LoginOrRegister(ctx context.Context, p Profile) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, &StepError{Step: stepStart, Code: ErrCodeConfig, Err: err}
	}
	p = p.WithDefaults()

	loggedIn, err := b.login(ctx, p)
	if err != nil {
		return b.outcome(ctx, stepSignIn, err)
	}
	if loggedIn {
		return true, nil
	}
	return b.outcome(ctx, stepSignUpEntry, b.register(ctx, p))
}

// login reports true when the site shows an authenticated page after sign in. A false
// result with a nil error means registration should be attempted.
func (b *Bot) login(ctx context.Context, p Profile) (bool, error) {
	if err := b.driver.Navigate(ctx, b.cfg.Site.HomeURL); err != nil {
		return false, b.fail(ctx, stepStart, ErrCodeNavigationError, err)
	}
	b.stepOK(stepStart, "Home page loaded.", zap.String("url", b.cfg.Site.HomeURL))

	if err := b.acceptCookies(ctx); err != nil {
		return false, err
	}

	signIn, ok, err := b.find(ctx,
		locator.ByRole("button", "Sign In"),
		locator.ByRole("link", "Sign In"),
	)
	if err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}
	if !ok {
		return false, b.fail(ctx, stepSignIn, ErrCodeElementNotFound, errors.New("sign in control not found"))
	}
	if err := b.driver.Click(ctx, signIn); err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}

	// The form renders after the click.
	if _, _, err := b.await(ctx, b.cfg.Timeouts.StepSettle, locator.ByLabel("E-mail"), locator.ByCSS("input[type=email]")); err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}
	if _, err := b.fill(ctx, stepSignIn, p.Username, locator.ByLabel("E-mail"), locator.ByCSS("input[type=email]")); err != nil {
		return false, err
	}
	if _, err := b.fill(ctx, stepSignIn, p.Password, locator.ByLabel("Password"), locator.ByCSS("input[type=password]")); err != nil {
		return false, err
	}

	submit, ok, err := b.find(ctx,
		locator.ByRole("button", "Login"),
		locator.ByCSS("button[type=submit], input[type=submit]"),
	)
	if err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}
	if !ok {
		return false, b.fail(ctx, stepSignIn, ErrCodeElementNotFound, errors.New("login submit control not found"))
	}

	// Site chrome such as the Send Money label can be on the page before the submit;
	// only signals that appear afterwards decide the outcome early.
	outcomes := []classifier.State{classifier.StateInvalidCredentials, classifier.StateAuthenticated}
	before, err := b.classifier.Present(ctx, b.driver, outcomes...)
	if err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}
	if err := b.driver.Click(ctx, submit); err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}

	state, err := b.classifier.WaitChange(ctx, b.driver, b.cfg.Timeouts.LoginSettle, before, outcomes...)
	if err != nil {
		return false, b.classify(ctx, stepSignIn, err)
	}
	switch state {
	case classifier.StateAuthenticated:
		b.stepOK(stepSignIn, "Login successful.")
		return true, nil
	case classifier.StateInvalidCredentials:
		b.stepWarn(stepSignIn, "Login failed with incorrect credentials, proceeding to sign up.")
	default:
		b.stepWarn(stepSignIn, "Login outcome not recognized, proceeding to sign up.")
	}
	return false, nil
}

// acceptCookies dismisses the consent banner when one is shown.
func (b *Bot) acceptCookies(ctx context.Context) error {
	btn, ok, err := b.find(ctx, locator.ByRole("button", "OK"), locator.ByText("OK"))
	if err != nil {
		return b.tolerate(ctx, stepCookies, err)
	}
	if !ok {
		b.logger.Debug("No cookie banner shown.")
		return nil
	}
	if err := b.tolerate(ctx, stepCookies, b.driver.Click(ctx, btn)); err != nil {
		return err
	}
	b.stepOK(stepCookies, "Cookie banner accepted.")
	return nil
}

// register walks the multi-step sign up form. It returns nil when the browser ends
// on an authenticated page.
func (b *Bot) register(ctx context.Context, p Profile) error {
	entry, ok, err := b.find(ctx,
		locator.ByRole("link", "Sign Up"),
		locator.ByRole("button", "Sign Up"),
		locator.ByText("Sign Up"),
		locator.ByCSSWithText("a, button", "Sign Up"),
	)
	if err != nil {
		return b.classify(ctx, stepSignUpEntry, err)
	}
	if !ok {
		n, _ := b.driver.Count(ctx, locator.Query{Kind: locator.KindText, Pattern: "sign.?up"})
		return b.fail(ctx, stepSignUpEntry, ErrCodeElementNotFound,
			fmt.Errorf("sign up control not found (%d elements mention sign up)", n))
	}
	b.stepOK(stepSignUpEntry, "Found Sign Up control.")
	if err := b.driver.Click(ctx, entry); err != nil {
		return b.classify(ctx, stepSignUpEntry, err)
	}

	st := &signupState{email: p.Username}
	if err := b.fillPersonalInfo(ctx, p, st); err != nil {
		return err
	}
	terms, err := b.acceptTerms(ctx)
	if err != nil {
		return err
	}
	st.terms = terms
	if err := b.submitPersonalInfo(ctx, st); err != nil {
		return err
	}

	// Billing and password problems are not final: the site may still have logged the
	// account in, which the verification below decides.
	if err := b.fillBilling(ctx, p); err != nil {
		if IsFatal(err) {
			return err
		}
		b.logFailure(ctx, b.classify(ctx, stepBilling, err))
	} else if err := b.createPassword(ctx, p); err != nil {
		if IsFatal(err) {
			return err
		}
		b.logFailure(ctx, b.classify(ctx, stepPassword, err))
	}

	return b.verifyAuthenticated(ctx, stepVerify)
}

// verifyAuthenticated waits for the authenticated page signals.
func (b *Bot) verifyAuthenticated(ctx context.Context, step string) error {
	state, err := b.classifier.Wait(ctx, b.driver, b.cfg.Timeouts.StepSettle, classifier.StateAuthenticated)
	if err != nil {
		return b.classify(ctx, step, err)
	}
	if state != classifier.StateAuthenticated {
		return b.fail(ctx, step, ErrCodeUnexpectedState, errors.New("authenticated page signals not present"))
	}
	b.stepOK(step, "Account created and logged in.")
	return nil
}
