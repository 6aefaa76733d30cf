// internal/classifier/classifier_test.go
package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// signalPage reports a count of 1 for every query whose String is in visible.
type signalPage struct {
	mu      sync.Mutex
	visible map[string]bool
	err     error
}

func (p *signalPage) Count(_ context.Context, q locator.Query) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if p.visible[q.String()] {
		return 1, nil
	}
	return 0, nil
}

func (p *signalPage) show(q locator.Query) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[q.String()] = true
}

func textQuery(s string) locator.Query { return locator.Query{Kind: locator.KindText, Name: s} }

func TestClassify(t *testing.T) {
	ctx := context.Background()
	c := Default()
	require.NoError(t, c.Validate())

	tests := []struct {
		name    string
		visible []locator.Query
		want    State
	}{
		{"nothing", nil, StateUnknown},
		{"invalid credentials", []locator.Query{textQuery(TextInvalidCredentials)}, StateInvalidCredentials},
		{"send money label", []locator.Query{textQuery(TextSendMoney)}, StateAuthenticated},
		{"log out link", []locator.Query{{Kind: locator.KindRole, Role: "link", Name: TextLogOut}}, StateAuthenticated},
		{"terms error", []locator.Query{textQuery(TextTermsError)}, StateTermsError},
		{"generic markers", []locator.Query{{Kind: locator.KindCSS, Selector: ErrorMarkerSelector}}, StateValidationError},
		{
			"invalid credentials outranks authenticated",
			[]locator.Query{textQuery(TextSendMoney), textQuery(TextInvalidCredentials)},
			StateInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &signalPage{visible: map[string]bool{}}
			for _, q := range tt.visible {
				page.show(q)
			}
			got, err := c.Classify(ctx, page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIs(t *testing.T) {
	ctx := context.Background()
	c := Default()
	page := &signalPage{visible: map[string]bool{}}
	page.show(textQuery(TextTermsError))

	ok, err := c.Is(ctx, page, StateTermsError)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Is(ctx, page, StateAuthenticated)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Is(ctx, page, State("NOT_A_RULE"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyPropagatesPageErrors(t *testing.T) {
	boom := errors.New("target closed")
	page := &signalPage{visible: map[string]bool{}, err: boom}
	_, err := Default().Classify(context.Background(), page)
	assert.ErrorIs(t, err, boom)
}

func TestWait(t *testing.T) {
	prev := locator.PollInterval
	locator.PollInterval = 5 * time.Millisecond
	t.Cleanup(func() { locator.PollInterval = prev })

	c := Default()

	t.Run("returns the state once it appears", func(t *testing.T) {
		page := &signalPage{visible: map[string]bool{}}
		time.AfterFunc(20*time.Millisecond, func() { page.show(textQuery(TextSendMoney)) })

		got, err := c.Wait(context.Background(), page, time.Second, StateInvalidCredentials, StateAuthenticated)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, got)
	})

	t.Run("ignores states it was not asked for", func(t *testing.T) {
		page := &signalPage{visible: map[string]bool{}}
		page.show(textQuery(TextTermsError))

		got, err := c.Wait(context.Background(), page, 30*time.Millisecond, StateAuthenticated)
		require.NoError(t, err)
		assert.Equal(t, StateUnknown, got)
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		page := &signalPage{visible: map[string]bool{}}
		_, err := c.Wait(ctx, page, time.Second, StateAuthenticated)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWaitChange(t *testing.T) {
	prev := locator.PollInterval
	locator.PollInterval = 5 * time.Millisecond
	t.Cleanup(func() { locator.PollInterval = prev })

	c := Default()
	ctx := context.Background()
	states := []State{StateInvalidCredentials, StateAuthenticated}

	t.Run("signals present before do not decide", func(t *testing.T) {
		page := &signalPage{visible: map[string]bool{}}
		page.show(textQuery(TextSendMoney))
		before, err := c.Present(ctx, page, states...)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{locator.ByText(TextSendMoney).Name(): true}, before)

		time.AfterFunc(20*time.Millisecond, func() { page.show(textQuery(TextInvalidCredentials)) })
		got, err := c.WaitChange(ctx, page, time.Second, before, states...)
		require.NoError(t, err)
		assert.Equal(t, StateInvalidCredentials, got)
	})

	t.Run("a new signal of the same state decides", func(t *testing.T) {
		page := &signalPage{visible: map[string]bool{}}
		page.show(textQuery(TextSendMoney))
		before, err := c.Present(ctx, page, states...)
		require.NoError(t, err)

		page.show(locator.Query{Kind: locator.KindRole, Role: "link", Name: TextLogOut})
		got, err := c.WaitChange(ctx, page, time.Second, before, states...)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, got)
	})

	t.Run("falls back to every signal on timeout", func(t *testing.T) {
		page := &signalPage{visible: map[string]bool{}}
		page.show(textQuery(TextSendMoney))
		before, err := c.Present(ctx, page, states...)
		require.NoError(t, err)

		got, err := c.WaitChange(ctx, page, 20*time.Millisecond, before, states...)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, got)
	})

	t.Run("page errors", func(t *testing.T) {
		boom := errors.New("target closed")
		_, err := c.Present(ctx, &signalPage{visible: map[string]bool{}, err: boom}, states...)
		assert.ErrorIs(t, err, boom)
	})
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, New().Validate(), ErrNoRules)
	assert.Error(t, New(Rule{State: StateAuthenticated}).Validate())
	assert.Error(t, New(Rule{Signals: []locator.Strategy{locator.ByText("x")}}).Validate())

	custom := New(Rule{State: StateAuthenticated, Signals: []locator.Strategy{locator.ByText("Dashboard")}})
	assert.NoError(t, custom.Validate())
	assert.Len(t, custom.Rules(), 1)
}
