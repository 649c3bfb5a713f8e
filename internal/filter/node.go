// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package filter compiles the XML selection grammar of the newer test engine
// into a boolean filter tree the V2 engine can evaluate.
//
// A filter document looks like this:
//
//	<filter>
//	  <or><cat>Urgent</cat><test>Some.Test.Name</test></or>
//	  <not><cat>Db</cat></not>
//	</filter>
//
// Only selectors the V2 engine has an equivalent for are accepted. Compiled
// trees are plain values; they are built fresh for every call and are never
// cached.
package filter

import (
	"fmt"
	"strings"
)

// Kind identifies the variant a Node holds.
type Kind int

const (
	// KindEmpty matches everything.
	KindEmpty Kind = iota
	// KindName matches tests by full name. Names are ORed.
	KindName
	// KindCategory matches tests carrying any of the categories.
	KindCategory
	// KindID matches a single already assigned test identity.
	KindID
	// KindAnd is the conjunction of Children.
	KindAnd
	// KindOr is the disjunction of Children.
	KindOr
	// KindNot negates its only child.
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindName:
		return "name"
	case KindCategory:
		return "cat"
	case KindID:
		return "id"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TestID is the identity the V2 engine assigns to a test: the id of the
// runner that loaded it and a runner-local test number.
type TestID struct {
	RunnerID int
	LocalID  int
}

// String returns the "<runnerId>-<localId>" form used on the wire.
func (id TestID) String() string {
	return fmt.Sprintf("%d-%d", id.RunnerID, id.LocalID)
}

// Node is a compiled filter. Which fields are meaningful depends on Kind.
type Node struct {
	Kind Kind

	// Names holds full test names for KindName.
	Names []string
	// Categories holds category names for KindCategory, in document order.
	Categories []string
	// ID is the identity matched by KindID.
	ID TestID
	// Children holds the operands of KindAnd, KindOr and KindNot.
	// KindNot always has exactly one child.
	Children []*Node
	// TopLevel is set on a KindNot node that is the whole filter document.
	// The V2 engine never lets explicit tests through such a node.
	TopLevel bool
}

// Empty returns a node matching everything.
func Empty() *Node { return &Node{Kind: KindEmpty} }

// Name returns a node matching any of the full test names.
func Name(names ...string) *Node { return &Node{Kind: KindName, Names: names} }

// Category returns a node matching tests in any of the categories.
func Category(cats ...string) *Node { return &Node{Kind: KindCategory, Categories: cats} }

// ID returns a node matching the test with the given identity.
func ID(runnerID, localID int) *Node {
	return &Node{Kind: KindID, ID: TestID{RunnerID: runnerID, LocalID: localID}}
}

// And returns the conjunction of children.
func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }

// Or returns the disjunction of children.
func Or(children ...*Node) *Node { return &Node{Kind: KindOr, Children: children} }

// Not returns the negation of child.
func Not(child *Node) *Node { return &Node{Kind: KindNot, Children: []*Node{child}} }

// IsEmpty reports whether n matches everything.
func (n *Node) IsEmpty() bool {
	return n == nil || n.Kind == KindEmpty
}

// String renders n in a compact diagnostic form such as
// "<and <cat A B> <not <id 1-2>>>".
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("<empty>")
		return
	}
	sb.WriteString("<")
	sb.WriteString(n.Kind.String())
	switch n.Kind {
	case KindName:
		for _, name := range n.Names {
			sb.WriteString(" " + name)
		}
	case KindCategory:
		for _, cat := range n.Categories {
			sb.WriteString(" " + cat)
		}
	case KindID:
		sb.WriteString(" " + n.ID.String())
	case KindAnd, KindOr, KindNot:
		for _, c := range n.Children {
			sb.WriteString(" ")
			c.write(sb)
		}
	}
	sb.WriteString(">")
}
