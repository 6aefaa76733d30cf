// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "tab"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, "target-1")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "target-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondaryDeadline", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelSecondary()
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, context.Cause(combined), context.DeadlineExceeded)
	})

	t.Run("CancelFuncReleasesSecondary", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		defer cancelSecondary()
		combined, cancel := CombineContext(context.Background(), secondary)

		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
		assert.NoError(t, secondary.Err(), "cancelling the combined context must not touch its parents")
	})
}

func TestContextError(t *testing.T) {
	callErr := errors.New("cdp: node not found")

	opCtx, cancelOp := context.WithCancel(context.Background())
	cancelOp()
	assert.ErrorIs(t, contextError(opCtx, context.Background(), callErr), context.Canceled)

	sessCtx, cancelSess := context.WithCancel(context.Background())
	cancelSess()
	assert.ErrorIs(t, contextError(context.Background(), sessCtx, callErr), ErrSessionClosed)

	require.Equal(t, callErr, contextError(context.Background(), context.Background(), callErr))
}
