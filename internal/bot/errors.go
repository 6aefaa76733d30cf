// internal/bot/errors.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/inmate-bot/internal/browser/session"
	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// ErrorCode classifies why a step failed. Codes decide whether a failure is converted
// into a false outcome or aborts the run.
type ErrorCode string

const (
	// -- Recoverable: logged and reported as an unsuccessful run --
	ErrCodeElementNotFound   ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError      ErrorCode = "TIMEOUT_ERROR"
	ErrCodeValidationBlocked ErrorCode = "VALIDATION_BLOCKED"
	ErrCodeUnexpectedState   ErrorCode = "UNEXPECTED_STATE"
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"

	// -- Fatal: returned to the caller --
	ErrCodeSessionFault    ErrorCode = "SESSION_FAULT"
	ErrCodeNavigationError ErrorCode = "NAVIGATION_ERROR"
	ErrCodeCanceled        ErrorCode = "CANCELED"
	ErrCodeConfig          ErrorCode = "CONFIG_ERROR"
)

var (
	// ErrMissingCredentials is returned before any browser work when the profile lacks
	// a username or password.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrEmptyQuery is returned when neither a record id nor a name was given.
	ErrEmptyQuery = errors.New("search query needs a record id or a name")
)

// StepError records the step that failed and why.
type StepError struct {
	Step string
	Code ErrorCode
	Err  error

	logged bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Step, e.Code, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Fatal reports whether the code ends the run.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrCodeSessionFault, ErrCodeNavigationError, ErrCodeCanceled, ErrCodeConfig:
		return true
	}
	return false
}

// IsFatal reports whether err must abort the run instead of being turned into a false
// outcome. Session loss and cancellation are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StepError
	if errors.As(err, &se) && se.Code.Fatal() {
		return true
	}
	return errors.Is(err, session.ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrEmptyQuery)
}

// CodeOf extracts the code of a StepError, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// classify wraps a raw driver error into a StepError. The run context and the
// browser's liveness decide between fatal and recoverable codes.
func (b *Bot) classify(ctx context.Context, step string, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	code := ErrCodeExecutionFailure
	switch {
	case ctx.Err() != nil:
		code = ErrCodeCanceled
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	case errors.Is(err, session.ErrSessionClosed):
		code = ErrCodeSessionFault
	case errors.Is(err, locator.ErrNotFound):
		code = ErrCodeElementNotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeoutError
	case !b.driver.Alive(ctx):
		code = ErrCodeSessionFault
	}
	return &StepError{Step: step, Code: code, Err: err}
}
