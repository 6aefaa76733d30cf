// Package locator resolves logical UI controls to concrete page elements by trying an
// ordered list of locating strategies.
package locator

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies how a Query matches elements.
type Kind string

const (
	// KindRole matches by ARIA role (implicit or explicit) and accessible name.
	KindRole Kind = "role"
	// KindLabel matches form controls by their label text or aria-label.
	KindLabel Kind = "label"
	// KindPlaceholder matches elements whose placeholder contains Name.
	KindPlaceholder Kind = "placeholder"
	// KindText matches the innermost elements whose text matches Name.
	KindText Kind = "text"
	// KindCSS matches a CSS selector, optionally filtered by contained text.
	KindCSS Kind = "css"
)

// Query is a serializable element description evaluated by a Page.
//
// For KindRole, KindLabel, KindPlaceholder and KindText, Name (or Pattern) is the text
// to match. For KindCSS, Name and Pattern act as a contained-text filter.
// Matching is a case-insensitive substring unless Exact is set, in which case the
// whitespace-normalized text must be identical. Pattern is a case-insensitive regular
// expression and takes precedence over Name.
type Query struct {
	Kind     Kind   `json:"kind"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Exact    bool   `json:"exact,omitempty"`
	Selector string `json:"selector,omitempty"`

	// Parent scopes the search to the subtree of another element.
	Parent *Element `json:"parent,omitempty"`
	// Up climbs this many ancestors from Parent before searching.
	Up int `json:"up,omitempty"`
}

// String renders a stable, human readable key for the query. It is used in logs.
func (q Query) String() string {
	var b strings.Builder
	if q.Parent != nil {
		b.WriteString("within(")
		b.WriteString(q.Parent.String())
		if q.Up > 0 {
			b.WriteString(" up ")
			b.WriteString(strconv.Itoa(q.Up))
		}
		b.WriteString(") ")
	}
	b.WriteString(string(q.Kind))
	b.WriteString("=")
	switch q.Kind {
	case KindRole:
		b.WriteString(q.Role)
	case KindCSS:
		b.WriteString(q.Selector)
	}
	switch {
	case q.Pattern != "":
		fmt.Fprintf(&b, "[/%s/i]", q.Pattern)
	case q.Name != "" && q.Exact:
		fmt.Fprintf(&b, "[%q exact]", q.Name)
	case q.Name != "":
		fmt.Fprintf(&b, "[%q]", q.Name)
	}
	return b.String()
}

// Element is a handle to the Index-th match of Query. It is re-resolved on every
// action, so a handle stays valid across re-renders as long as the query still matches.
type Element struct {
	Query Query `json:"query"`
	Index int   `json:"index"`
}

// String renders the element handle for logs.
func (e Element) String() string {
	if e.Index == 0 {
		return e.Query.String()
	}
	return fmt.Sprintf("%s#%d", e.Query.String(), e.Index)
}

// Nth returns a handle to another match of the same query.
func (e Element) Nth(i int) Element {
	return Element{Query: e.Query, Index: i}
}
