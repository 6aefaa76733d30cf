// internal/bot/login_test.go
package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/inmate-bot/internal/classifier"
	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// loginPage registers the sign in form. onLogin runs when Login is clicked.
func loginPage(p *fakePage, onLogin func()) {
	p.add(roleQ("button", "Sign In"), &fakeElement{tag: "button"})
	p.add(labelQ("E-mail"), &fakeElement{})
	p.add(labelQ("Password"), &fakeElement{})
	p.add(roleQ("button", "Login"), &fakeElement{tag: "button", onClick: onLogin})
}

// signupPage registers the whole registration flow and returns the elements the
// tests assert on.
type signupFixture struct {
	middle *fakeElement
	terms  *fakeElement
	email  *fakeElement
}

func signupPage(p *fakePage) signupFixture {
	f := signupFixture{
		middle: &fakeElement{tag: "input", toggles: true},
		terms:  &fakeElement{},
		email:  &fakeElement{},
	}
	p.add(roleQ("link", "Sign Up"), &fakeElement{tag: "a"})

	// Personal information.
	p.add(labelQ("First Name *"), &fakeElement{})
	p.add(textQ(noMiddleNameText), &fakeElement{tag: "span", target: f.middle})
	p.add(labelQ("Middle Name *"), &fakeElement{})
	p.add(labelQ("Last Name *"), &fakeElement{})
	p.add(labelQ("Date of Birth *"), &fakeElement{})
	p.add(labelQ("Phone *"), &fakeElement{})
	p.add(cssQ(emailDataID), &fakeElement{})
	p.add(cssQ(confirmEmailDataID), f.email)
	p.add(cssTextQ(checkboxSelector, TermsText), f.terms)

	// NEXT leads to billing first, then to the password step.
	nextClicks := 0
	p.add(roleQ("button", "NEXT"), &fakeElement{tag: "button", onClick: func() {
		nextClicks++
		switch nextClicks {
		case 1:
			p.add(textQ("Billing Address"), &fakeElement{tag: "h2"})
		case 2:
			p.add(textQ("Create Password"), &fakeElement{tag: "h2"})
		}
	}})

	// Billing address.
	p.add(labelQ("Address *"), &fakeElement{})
	p.add(labelQ("City *"), &fakeElement{})
	p.add(labelQ("State *"), &fakeElement{tag: "div"})
	p.add(roleQ("option", DefaultState), &fakeElement{tag: "li"})
	p.add(labelQ("Zip Code *"), &fakeElement{})

	// Password.
	p.add(labelQ("Password *"), &fakeElement{})
	p.add(labelQ("Confirm Password *"), &fakeElement{})
	p.add(roleQ("button", "DONE"), &fakeElement{tag: "button", onClick: func() {
		p.add(roleQ("link", classifier.TextLogOut), &fakeElement{tag: "a"})
	}})
	return f
}

func TestLoginOrRegisterSignsUpAfterRejectedLogin(t *testing.T) {
	p := newFakePage()
	loginPage(p, func() {
		p.add(textQ(classifier.TextInvalidCredentials), &fakeElement{tag: "div"})
	})
	f := signupPage(p)
	b, logs := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, f.middle.checked, "no middle name toggle must end checked for a blank middle name")
	assert.True(t, f.terms.checked)
	assert.Equal(t, "a@b.com", f.email.value)
	assert.True(t, p.did("click "+el(labelQ("State *")).String()))
	assert.True(t, p.did("click "+el(roleQ("option", DefaultState)).String()))
	assert.True(t, p.did("fill "+el(labelQ("Confirm Password *")).String()+"=Pw1"))
	assert.True(t, p.did("click "+el(roleQ("button", "DONE")).String()))
	assert.False(t, p.did("fill "+el(labelQ("Middle Name *")).String()+"="))

	assert.Equal(t, 1, logs.FilterMessage("Login failed with incorrect credentials, proceeding to sign up.").Len())
	assert.Equal(t, 1, logs.FilterMessage("Account created and logged in.").Len())
	assert.Zero(t, logs.FilterMessage("Step failed.").Len())
}

func TestLoginOrRegisterWaitsForTheLoginErrorBehindSiteChrome(t *testing.T) {
	p := newFakePage()
	// The Send Money label is part of the site chrome and already shown before submit.
	p.add(textQ(classifier.TextSendMoney), &fakeElement{tag: "span"})
	submitted := false
	loginPage(p, func() { submitted = true })
	invalid := textQ(classifier.TextInvalidCredentials)
	polls := 0
	p.onCount = func(q locator.Query) {
		if !submitted || q.String() != invalid.String() {
			return
		}
		// The error renders on the second poll after submit.
		if polls++; polls == 2 {
			p.add(invalid, &fakeElement{tag: "div"})
		}
	}
	f := signupPage(p)
	b, logs := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, polls, 2)
	assert.Equal(t, 1, logs.FilterMessage("Login failed with incorrect credentials, proceeding to sign up.").Len())
	assert.Zero(t, logs.FilterMessage("Login successful.").Len())
	assert.True(t, p.did("click "+el(roleQ("link", "Sign Up")).String()), "registration runs after a rejected login")
	assert.True(t, f.terms.checked)
}

func TestLoginOrRegisterLogsInDirectly(t *testing.T) {
	p := newFakePage()
	loginPage(p, func() {
		p.add(textQ(classifier.TextSendMoney), &fakeElement{tag: "span"})
	})
	p.add(roleQ("button", "OK"), &fakeElement{tag: "button"})
	p.add(roleQ("link", "Sign Up"), &fakeElement{tag: "a"})
	b, _ := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, p.did("click "+el(roleQ("button", "OK")).String()), "cookie banner should be accepted")
	assert.True(t, p.did("fill "+el(labelQ("E-mail")).String()+"=a@b.com"))
	assert.False(t, p.did("click "+el(roleQ("link", "Sign Up")).String()))
}

func TestLoginOrRegisterRejectsMissingCredentials(t *testing.T) {
	p := newFakePage()
	b, _ := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, ErrCodeConfig, CodeOf(err))
	assert.True(t, IsFatal(err))
	assert.Empty(t, p.actions, "no browser work before the profile is valid")
}

func TestLoginOrRegisterNavigationFailureIsFatal(t *testing.T) {
	p := newFakePage()
	p.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	b, _ := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, ErrCodeNavigationError, CodeOf(err))
}

func TestLoginOrRegisterSessionLossIsFatal(t *testing.T) {
	p := newFakePage()
	loginPage(p, nil)
	p.dead = true
	b, _ := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, ErrCodeSessionFault, CodeOf(err))
}

func TestLoginOrRegisterRecoverableFailureIsFalse(t *testing.T) {
	p := newFakePage()
	p.url = "https://site.test/"
	loginPage(p, func() {
		p.add(textQ(classifier.TextInvalidCredentials), &fakeElement{tag: "div"})
	})
	b, logs := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err, "a missing sign up control is not a run fault")
	assert.False(t, ok)

	failures := logs.FilterMessage("Step failed.").All()
	require.Len(t, failures, 1, "a failure is logged once")
	fields := failures[0].ContextMap()
	assert.Equal(t, stepSignUpEntry, fields["step"])
	assert.Equal(t, string(ErrCodeElementNotFound), fields["code"])
	assert.Equal(t, "https://site.test/", fields["url"])
	assert.Equal(t, "Access Corrections", fields["title"])
}

func TestLoginOrRegisterClickFailureOnLiveSessionIsRecoverable(t *testing.T) {
	p := newFakePage()
	loginPage(p, nil)
	p.clickErr = errors.New("node is detached")
	b, _ := newTestBot(t, p)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginOrRegisterCanceled(t *testing.T) {
	p := newFakePage()
	loginPage(p, nil)
	b, _ := newTestBot(t, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := b.LoginOrRegister(ctx, Profile{Username: "a@b.com", Password: "Pw1"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithClassifierReplacesRules(t *testing.T) {
	p := newFakePage()
	loginPage(p, func() {
		p.add(textQ("Welcome back"), &fakeElement{tag: "h1"})
	})
	c := classifier.New(
		classifier.Rule{State: classifier.StateAuthenticated, Signals: []locator.Strategy{locator.ByText("Welcome back")}},
		classifier.Rule{State: classifier.StateInvalidCredentials, Signals: []locator.Strategy{locator.ByText(classifier.TextInvalidCredentials)}},
	)
	b, err := New(p, testConfig(), WithClassifier(c))
	require.NoError(t, err)

	ok, err := b.LoginOrRegister(context.Background(), Profile{Username: "a@b.com", Password: "Pw1"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = New(p, testConfig(), WithClassifier(classifier.New()))
	assert.ErrorIs(t, err, classifier.ErrNoRules)
}
