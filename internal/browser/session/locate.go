package session

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed js/locator.js
var locatorScript string

// opResult is the envelope every locator.js operation returns.
type opResult struct {
	Found bool                `json:"found"`
	Value jsoniter.RawMessage `json:"value"`
}

// transientEvalErrors are reported while a navigation swaps the execution context.
var transientEvalErrors = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"Inspected target navigated or closed",
}

func isTransient(err error) bool {
	msg := err.Error()
	for _, s := range transientEvalErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// elementOp runs op against the target element inside the page and decodes its value
// into out. A target that no longer matches yields locator.ErrNotFound.
func (s *Session) elementOp(ctx context.Context, el locator.Element, op string, arg interface{}, out interface{}) error {
	target, err := json.Marshal(el)
	if err != nil {
		return fmt.Errorf("failed to encode element: %w", err)
	}
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to encode argument: %w", err)
	}
	expr := fmt.Sprintf("(%s)(%s, %q, %s)", locatorScript, target, op, argJSON)

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Action)
	defer cancel()

	var raw []byte
	evaluate := chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	})
	err = s.RunActions(opCtx, evaluate)
	if err != nil && isTransient(err) {
		// One retry once the new document has an execution context.
		s.logger.Debug("Retrying element operation after context swap.", zap.String("op", op), zap.Error(err))
		if sleepErr := s.Sleep(ctx, 250*time.Millisecond); sleepErr != nil {
			return sleepErr
		}
		err = s.RunActions(opCtx, evaluate)
	}
	if err != nil {
		return fmt.Errorf("%s on %s: %w", op, el, err)
	}

	var res opResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", op, err)
	}
	if !res.Found {
		return fmt.Errorf("%s on %s: %w", op, el, locator.ErrNotFound)
	}
	if out == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("failed to decode %s value: %w", op, err)
	}
	return nil
}

// Count implements locator.Page. While a navigation is swapping documents the page has
// no elements, so transient evaluation failures count as zero.
func (s *Session) Count(ctx context.Context, q locator.Query) (int, error) {
	var n int
	err := s.elementOp(ctx, locator.Element{Query: q}, "count", nil, &n)
	if err != nil {
		if isTransient(err) {
			s.logger.Debug("Count during navigation treated as empty.", zap.Stringer("query", q), zap.Error(err))
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
