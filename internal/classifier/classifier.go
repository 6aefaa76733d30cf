// internal/classifier/classifier.go
// Package classifier turns the live page into a named state by probing ordered signal
// rules. The rules are data, so a site redesign only touches the rule set.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// State is a recognized page condition.
type State string

const (
	StateUnknown            State = "UNKNOWN"
	StateInvalidCredentials State = "INVALID_CREDENTIALS"
	StateAuthenticated      State = "AUTHENTICATED"
	StateTermsError         State = "TERMS_ERROR"
	StateValidationError    State = "VALIDATION_ERROR"
)

// Texts the site renders for each state.
const (
	TextInvalidCredentials = "Incorrect username or password"
	TextSendMoney          = "Send Money"
	TextLogOut             = "Log Out"
	TextTermsError         = "*Please indicate that you have read and agree to the terms and conditions"
	TextValidationError    = "Please be sure to enter the correct information"

	// ErrorMarkerSelector matches inline validation markers of the registration forms.
	ErrorMarkerSelector = ".error, .validation-error, [class*='error']"
)

// Rule maps a set of signals to a state. Any one signal is sufficient.
type Rule struct {
	State   State
	Signals []locator.Strategy
}

// Classifier evaluates its rules in order.
type Classifier struct {
	rules []Rule
}

// New builds a classifier from rules. Earlier rules take precedence.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules returns the rule set for the Access Corrections site.
func DefaultRules() []Rule {
	return []Rule{
		{State: StateInvalidCredentials, Signals: []locator.Strategy{
			locator.ByText(TextInvalidCredentials),
		}},
		{State: StateAuthenticated, Signals: []locator.Strategy{
			locator.ByText(TextSendMoney),
			locator.ByRole("link", TextLogOut),
		}},
		{State: StateTermsError, Signals: []locator.Strategy{
			locator.ByText(TextTermsError),
		}},
		{State: StateValidationError, Signals: []locator.Strategy{
			locator.ByText(TextValidationError),
			locator.ByCSS(ErrorMarkerSelector),
		}},
	}
}

// Default returns a classifier with DefaultRules.
func Default() *Classifier {
	return New(DefaultRules()...)
}

// Rules returns a copy of the rule set.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Signals returns the strategies of state, or nil when no rule names it.
func (c *Classifier) Signals(state State) []locator.Strategy {
	for _, r := range c.rules {
		if r.State == state {
			return r.Signals
		}
	}
	return nil
}

// Classify returns the first state whose signals match the page, or StateUnknown.
func (c *Classifier) Classify(ctx context.Context, page locator.Page) (State, error) {
	return c.classify(ctx, page, nil)
}

func (c *Classifier) classify(ctx context.Context, page locator.Page, only map[State]bool) (State, error) {
	for _, r := range c.rules {
		if only != nil && !only[r.State] {
			continue
		}
		ok, err := locator.Exists(ctx, page, r.Signals...)
		if err != nil {
			return StateUnknown, fmt.Errorf("classifying %s: %w", r.State, err)
		}
		if ok {
			return r.State, nil
		}
	}
	return StateUnknown, nil
}

// Is reports whether the page currently shows state.
func (c *Classifier) Is(ctx context.Context, page locator.Page, state State) (bool, error) {
	signals := c.Signals(state)
	if len(signals) == 0 {
		return false, nil
	}
	return locator.Exists(ctx, page, signals...)
}

// Wait polls until one of states is shown or timeout elapses. It returns StateUnknown
// with a nil error on timeout. When several states match, rule order decides.
func (c *Classifier) Wait(ctx context.Context, page locator.Page, timeout time.Duration, states ...State) (State, error) {
	only := stateSet(states)
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(locator.PollInterval)
	defer ticker.Stop()

	for {
		state, err := c.classify(ctx, page, only)
		if err != nil || state != StateUnknown {
			return state, err
		}
		if !time.Now().Before(deadline) {
			return StateUnknown, nil
		}
		select {
		case <-ctx.Done():
			return StateUnknown, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ErrNoRules is returned by Validate for an empty classifier.
var ErrNoRules = errors.New("classifier has no rules")

// Present returns the names of the signals of states that currently match. Pass the
// result to WaitChange to ignore them.
func (c *Classifier) Present(ctx context.Context, page locator.Page, states ...State) (map[string]bool, error) {
	only := stateSet(states)
	present := make(map[string]bool)
	for _, r := range c.rules {
		if !only[r.State] {
			continue
		}
		for _, s := range r.Signals {
			m, err := s.Probe(ctx, page)
			if err != nil {
				return nil, fmt.Errorf("classifying %s: %w", r.State, err)
			}
			if m.Count > 0 {
				present[s.Name()] = true
			}
		}
	}
	return present, nil
}

// WaitChange is Wait over the signals that were not in before, so page chrome that
// stays put across a transition cannot decide it. When nothing new appears within
// timeout the page is classified with every signal of states, in rule order.
func (c *Classifier) WaitChange(ctx context.Context, page locator.Page, timeout time.Duration, before map[string]bool, states ...State) (State, error) {
	only := stateSet(states)
	fresh := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		if !only[r.State] {
			continue
		}
		var signals []locator.Strategy
		for _, s := range r.Signals {
			if !before[s.Name()] {
				signals = append(signals, s)
			}
		}
		fresh = append(fresh, Rule{State: r.State, Signals: signals})
	}
	state, err := New(fresh...).Wait(ctx, page, timeout, states...)
	if err != nil || state != StateUnknown {
		return state, err
	}
	return c.classify(ctx, page, only)
}

func stateSet(states []State) map[State]bool {
	only := make(map[State]bool, len(states))
	for _, s := range states {
		only[s] = true
	}
	return only
}

// Validate checks that every rule has a state and at least one signal.
func (c *Classifier) Validate() error {
	if len(c.rules) == 0 {
		return ErrNoRules
	}
	for i, r := range c.rules {
		if r.State == "" || r.State == StateUnknown {
			return fmt.Errorf("rule %d has no state", i)
		}
		if len(r.Signals) == 0 {
			return fmt.Errorf("rule %d (%s) has no signals", i, r.State)
		}
	}
	return nil
}
