// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext returns a context that carries the values of primary (the chromedp tab
// context) and is cancelled when either primary or secondary (the operation's own
// deadline) is done. The cancellation cause of secondary is preserved.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// contextError picks the most meaningful error after a failed CDP call: the operation's
// own context first, then the session's, then the call error itself.
func contextError(op, session context.Context, err error) error {
	if op.Err() != nil {
		return op.Err()
	}
	if session.Err() != nil {
		return ErrSessionClosed
	}
	return err
}
