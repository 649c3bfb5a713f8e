// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

import (
	"golang.org/x/exp/slices"

	"github.com/nunit/v2driver/internal/filter"
)

// pass reports whether the test at n is selected by f. A test is selected if
// f matches the test itself, one of its ancestors or one of its descendants.
// Conjunctions and disjunctions apply this rule to each operand.
//
// Explicit tests, and tests inside explicit suites, are only selected when
// the filter selects them directly or names an ancestor outside the explicit
// subtree. The empty filter and a top-level <not> never select them.
func pass(f *filter.Node, n *node) bool {
	switch f.Kind {
	case filter.KindAnd:
		for _, c := range f.Children {
			if !pass(c, n) {
				return false
			}
		}
		return true
	case filter.KindOr:
		for _, c := range f.Children {
			if pass(c, n) {
				return true
			}
		}
		return false
	}

	if underExplicit(n) {
		return selectsExplicitly(f, n)
	}
	if match(f, n) {
		return true
	}
	for p := n.parent; p != nil; p = p.parent {
		if match(f, p) {
			return true
		}
	}
	return matchDescendant(f, n)
}

// match evaluates f against n alone.
func match(f *filter.Node, n *node) bool {
	switch f.Kind {
	case filter.KindEmpty:
		return true
	case filter.KindName:
		return slices.Contains(f.Names, n.info.TestName.FullName)
	case filter.KindCategory:
		for _, c := range n.info.Categories {
			if slices.Contains(f.Categories, c) {
				return true
			}
		}
		return false
	case filter.KindID:
		return f.ID.RunnerID == n.info.TestName.RunnerID && f.ID.LocalID == n.info.TestName.TestID
	case filter.KindAnd:
		for _, c := range f.Children {
			if !match(c, n) {
				return false
			}
		}
		return true
	case filter.KindOr:
		for _, c := range f.Children {
			if match(c, n) {
				return true
			}
		}
		return false
	case filter.KindNot:
		if f.TopLevel && n.explicit() {
			return false
		}
		return !pass(f.Children[0], n)
	default:
		return false
	}
}

func matchDescendant(f *filter.Node, n *node) bool {
	for _, c := range n.children {
		if match(f, c) || matchDescendant(f, c) {
			return true
		}
	}
	return false
}

func underExplicit(n *node) bool {
	for ; n != nil; n = n.parent {
		if n.explicit() {
			return true
		}
	}
	return false
}

// selectsExplicitly reports whether f selects n directly, through a name
// or id of one of its ancestors, or because it selects a descendant.
func selectsExplicitly(f *filter.Node, n *node) bool {
	if positive(f, n, true) {
		return true
	}
	for p := n.parent; p != nil; p = p.parent {
		if positive(f, p, underExplicit(p)) {
			return true
		}
	}
	for _, c := range n.children {
		if selectsExplicitly(f, c) {
			return true
		}
	}
	return false
}

// positive is like match, except that the empty filter and a top-level
// negation never match. When self is unset, as for ancestors of an explicit
// subtree, only names and ids count.
func positive(f *filter.Node, n *node, self bool) bool {
	switch f.Kind {
	case filter.KindEmpty:
		return false
	case filter.KindCategory:
		return self && match(f, n)
	case filter.KindAnd:
		for _, c := range f.Children {
			if !positive(c, n, self) {
				return false
			}
		}
		return true
	case filter.KindOr:
		for _, c := range f.Children {
			if positive(c, n, self) {
				return true
			}
		}
		return false
	case filter.KindNot:
		if !self || f.TopLevel {
			return false
		}
		return !pass(f.Children[0], n)
	default:
		return match(f, n)
	}
}
