package locator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no strategy yields a match. It is a normal outcome,
// callers decide whether it aborts their step.
var ErrNotFound = errors.New("element not found")

// Page is the read-only surface the resolver needs. Count must not mutate the page.
type Page interface {
	Count(ctx context.Context, q Query) (int, error)
}

// Match is the outcome of a successful resolution.
type Match struct {
	Element  Element
	Count    int
	Strategy string
}

// Last returns a handle to the final match of the winning query.
func (m Match) Last() Element {
	if m.Count == 0 {
		return m.Element
	}
	return m.Element.Nth(m.Count - 1)
}

// ProbeFunc evaluates one strategy. A zero Match (Count == 0) with a nil error means no match.
type ProbeFunc func(ctx context.Context, page Page) (Match, error)

// Strategy is one lazily evaluated way of finding a logical control.
type Strategy struct {
	name  string
	build func() Query
	nth   int
	probe ProbeFunc
}

const lastIndex = -1

// Func wraps an arbitrary probe as a strategy. Use it for associations that need more
// than a single query, such as following a label's for attribute.
func Func(name string, probe ProbeFunc) Strategy {
	return Strategy{name: name, probe: probe}
}

// FromQuery builds a strategy from a lazily constructed query.
func FromQuery(name string, build func() Query) Strategy {
	return Strategy{name: name, build: build}
}

// Name returns the strategy's label used in logs.
func (s Strategy) Name() string { return s.name }

// Nth selects the i-th match instead of the first. The strategy only matches when at
// least i+1 elements exist.
func (s Strategy) Nth(i int) Strategy {
	s.nth = i
	s.name = fmt.Sprintf("%s.nth(%d)", s.name, i)
	return s
}

// Last selects the final match.
func (s Strategy) Last() Strategy {
	s.nth = lastIndex
	s.name += ".last"
	return s
}

// Probe evaluates the strategy once.
func (s Strategy) Probe(ctx context.Context, page Page) (Match, error) {
	if s.probe != nil {
		return s.probe(ctx, page)
	}
	if s.build == nil {
		return Match{}, fmt.Errorf("strategy %q has no query", s.name)
	}
	q := s.build()
	n, err := page.Count(ctx, q)
	if err != nil {
		return Match{}, err
	}
	idx := s.nth
	if idx == lastIndex {
		idx = n - 1
	}
	if n == 0 || idx < 0 || idx >= n {
		return Match{}, nil
	}
	return Match{Element: Element{Query: q, Index: idx}, Count: n, Strategy: s.name}, nil
}

// Resolve evaluates strategies left to right and returns the first with at least one
// match. Page errors stop the evaluation and are returned as is. When nothing matches
// the error is ErrNotFound.
func Resolve(ctx context.Context, page Page, strategies ...Strategy) (Match, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		m, err := s.Probe(ctx, page)
		if err != nil {
			return Match{}, fmt.Errorf("strategy %s: %w", s.name, err)
		}
		if m.Count > 0 {
			return m, nil
		}
	}
	return Match{}, ErrNotFound
}

// Exists reports whether any strategy matches. Only page errors are returned.
func Exists(ctx context.Context, page Page, strategies ...Strategy) (bool, error) {
	_, err := Resolve(ctx, page, strategies...)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// PollInterval is how often WaitFor re-probes the page.
var PollInterval = 100 * time.Millisecond

// WaitFor polls Resolve until a strategy matches or timeout elapses. On timeout it
// returns ErrNotFound. Cancellation of ctx is returned as the context error.
func WaitFor(ctx context.Context, page Page, timeout time.Duration, strategies ...Strategy) (Match, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		m, err := Resolve(ctx, page, strategies...)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return m, err
		}
		if !time.Now().Before(deadline) {
			return Match{}, ErrNotFound
		}
		select {
		case <-ctx.Done():
			return Match{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
