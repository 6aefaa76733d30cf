package locator

import (
	"context"
	"fmt"
)

// ByRole matches elements with the given ARIA role whose accessible name contains name.
// An empty name matches every element with the role.
func ByRole(role, name string) Strategy {
	return FromQuery(fmt.Sprintf("role(%s,%q)", role, name), func() Query {
		return Query{Kind: KindRole, Role: role, Name: name}
	})
}

// ByRoleExact is ByRole with a whole-string, case-sensitive name comparison.
func ByRoleExact(role, name string) Strategy {
	return FromQuery(fmt.Sprintf("role(%s,%q,exact)", role, name), func() Query {
		return Query{Kind: KindRole, Role: role, Name: name, Exact: true}
	})
}

// ByRolePattern matches the accessible name against a case-insensitive regular expression.
func ByRolePattern(role, pattern string) Strategy {
	return FromQuery(fmt.Sprintf("role(%s,/%s/i)", role, pattern), func() Query {
		return Query{Kind: KindRole, Role: role, Pattern: pattern}
	})
}

// ByLabel matches form controls associated with a label containing text.
func ByLabel(text string) Strategy {
	return FromQuery(fmt.Sprintf("label(%q)", text), func() Query {
		return Query{Kind: KindLabel, Name: text}
	})
}

// ByPlaceholder matches elements whose placeholder contains text.
func ByPlaceholder(text string) Strategy {
	return FromQuery(fmt.Sprintf("placeholder(%q)", text), func() Query {
		return Query{Kind: KindPlaceholder, Name: text}
	})
}

// ByText matches the innermost visible elements whose text contains text.
func ByText(text string) Strategy {
	return FromQuery(fmt.Sprintf("text(%q)", text), func() Query {
		return Query{Kind: KindText, Name: text}
	})
}

// ByTextExact matches elements whose whole text equals text.
func ByTextExact(text string) Strategy {
	return FromQuery(fmt.Sprintf("text(%q,exact)", text), func() Query {
		return Query{Kind: KindText, Name: text, Exact: true}
	})
}

// ByTextPattern matches element text against a case-insensitive regular expression.
func ByTextPattern(pattern string) Strategy {
	return FromQuery(fmt.Sprintf("text(/%s/i)", pattern), func() Query {
		return Query{Kind: KindText, Pattern: pattern}
	})
}

// ByCSS matches a CSS selector.
func ByCSS(selector string) Strategy {
	return FromQuery(fmt.Sprintf("css(%s)", selector), func() Query {
		return Query{Kind: KindCSS, Selector: selector}
	})
}

// ByCSSWithText matches a CSS selector and keeps only elements containing text.
func ByCSSWithText(selector, text string) Strategy {
	return FromQuery(fmt.Sprintf("css(%s:has-text(%q))", selector, text), func() Query {
		return Query{Kind: KindCSS, Selector: selector, Name: text}
	})
}

// ByCSSWithPattern matches a CSS selector and keeps elements whose text matches pattern.
func ByCSSWithPattern(selector, pattern string) Strategy {
	return FromQuery(fmt.Sprintf("css(%s:has-text(/%s/i))", selector, pattern), func() Query {
		return Query{Kind: KindCSS, Selector: selector, Pattern: pattern}
	})
}

// Within scopes a query based strategy to the subtree of parent.
func Within(parent Element, child Strategy) Strategy {
	return scoped(parent, 0, child)
}

// InParentOf scopes a query based strategy to the subtree of parent's parent element,
// i.e. the container the parent sits in.
func InParentOf(parent Element, child Strategy) Strategy {
	return scoped(parent, 1, child)
}

// InAncestorOf scopes a query based strategy to the subtree of parent's up-th ancestor.
func InAncestorOf(parent Element, up int, child Strategy) Strategy {
	return scoped(parent, up, child)
}

func scoped(parent Element, up int, child Strategy) Strategy {
	name := fmt.Sprintf("within(%s,%d).%s", parent.String(), up, child.name)
	if child.build == nil {
		return Func(name, func(_ context.Context, _ Page) (Match, error) {
			return Match{}, fmt.Errorf("strategy %q cannot be scoped", child.name)
		})
	}
	build := child.build
	s := child
	s.name = name
	s.build = func() Query {
		q := build()
		p := parent
		q.Parent = &p
		q.Up = up
		return q
	}
	return s
}
