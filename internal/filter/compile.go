// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package filter

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/nunit/v2driver/errors"
)

// Mode decides how <id> selectors are handled.
type Mode int

const (
	// TranslateIDs compiles <id> into ID nodes.
	TranslateIDs Mode = iota
	// RejectIDs fails on <id> with an UnsupportedFeatureError.
	RejectIDs
)

func (m Mode) String() string {
	switch m {
	case TranslateIDs:
		return "translate"
	case RejectIDs:
		return "reject"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode parses the string form of a Mode as accepted on command lines.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "translate":
		return TranslateIDs, nil
	case "reject":
		return RejectIDs, nil
	default:
		return 0, errors.Errorf("unknown id filter mode %q (want translate or reject)", s)
	}
}

// Compiler turns filter documents into Node trees.
// A Compiler holds no state besides its mode and may be shared.
type Compiler struct {
	mode Mode
}

// NewCompiler returns a Compiler using mode for <id> selectors.
func NewCompiler(mode Mode) *Compiler {
	return &Compiler{mode: mode}
}

// Mode returns the compatibility mode of c.
func (c *Compiler) Mode() Mode { return c.mode }

// Compile compiles filterXML. An empty document, or a <filter> root without
// child elements, matches everything.
//
// Errors are *SyntaxError, *UnsupportedFeatureError or
// *UnrecognizedElementError. No tree is returned on error.
func (c *Compiler) Compile(filterXML string) (*Node, error) {
	if filterXML == "" {
		return Empty(), nil
	}

	root, err := parse(filterXML)
	if err != nil {
		return nil, err
	}
	if root == nil || root.name != "filter" {
		return nil, syntaxErrorf(NoFilterElementMessage)
	}

	var n *Node
	switch len(root.children) {
	case 0:
		return Empty(), nil
	case 1:
		n, err = c.compile(root.children[0])
	default:
		n, err = c.compile(root)
	}
	if err != nil {
		return nil, err
	}
	if n.Kind == KindNot {
		n.TopLevel = true
	}
	return n, nil
}

func (c *Compiler) compile(e *element) (*Node, error) {
	switch e.name {
	case "filter", "and":
		children, err := c.compileChildren(e)
		if err != nil {
			return nil, err
		}
		return And(children...), nil

	case "or":
		children, err := c.compileChildren(e)
		if err != nil {
			return nil, err
		}
		return Or(children...), nil

	case "not":
		if len(e.children) == 0 {
			return nil, syntaxErrorf("Invalid filter passed to NUnit V2 driver: <not> requires a child element")
		}
		child, err := c.compile(e.children[0])
		if err != nil {
			return nil, err
		}
		return Not(child), nil

	case "test":
		if e.hasAttr("re") {
			return nil, unsupported("regex", NoRegularExpressionsMessage)
		}
		return Name(strings.Split(e.text(), ",")...), nil

	case "cat":
		if e.hasAttr("re") {
			return nil, unsupported("regex", NoRegularExpressionsMessage)
		}
		var cats []string
		for _, tok := range strings.Split(e.text(), ",") {
			if tok != "" {
				cats = append(cats, tok)
			}
		}
		if len(cats) == 0 {
			return nil, syntaxErrorf("Invalid filter passed to NUnit V2 driver: <cat> names no category")
		}
		return Category(cats...), nil

	case "id":
		if c.mode == RejectIDs {
			return nil, unsupported("id", NoIDFilterMessage)
		}
		return compileIDs(e.text()), nil

	case "name":
		return nil, unsupported("name", NoNameFilterMessage)
	case "class":
		return nil, unsupported("class", NoClassFilterMessage)
	case "method":
		return nil, unsupported("method", NoMethodFilterMessage)
	case "prop":
		return nil, unsupported("prop", NoPropertyFilterMessage)

	default:
		return nil, &UnrecognizedElementError{
			E:       errors.Errorf("unrecognized filter element: %s", e.name),
			Element: e.name,
		}
	}
}

func (c *Compiler) compileChildren(e *element) ([]*Node, error) {
	if len(e.children) == 0 {
		return nil, syntaxErrorf("Invalid filter passed to NUnit V2 driver: <%s> requires at least one child element", e.name)
	}
	var nodes []*Node
	for _, child := range e.children {
		n, err := c.compile(child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// compileIDs builds ID nodes from a comma separated list of "R-T" tokens.
// Tokens of any other shape are dropped.
func compileIDs(text string) *Node {
	var ids []*Node
	for _, tok := range strings.Split(text, ",") {
		parts := strings.Split(tok, "-")
		if len(parts) != 2 {
			continue
		}
		runnerID, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		localID, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		ids = append(ids, ID(runnerID, localID))
	}
	if len(ids) == 1 {
		return ids[0]
	}
	return Or(ids...)
}

// element is the subset of an XML element the grammar looks at.
type element struct {
	name     string
	attrs    []xml.Attr
	buf      strings.Builder // concatenated descendant character data
	children []*element
}

func (e *element) text() string { return e.buf.String() }

func (e *element) hasAttr(local string) bool {
	for _, a := range e.attrs {
		if a.Name.Local == local {
			return true
		}
	}
	return false
}

// parse reads s into an element tree and returns its root element, or nil
// if the document has no element at all.
func parse(s string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(s))
	var root *element
	var open []*element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SyntaxError{errors.Wrap(err, "Invalid filter passed to NUnit V2 driver")}
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			e := &element{name: tok.Name.Local, attrs: tok.Attr}
			if len(open) == 0 {
				if root != nil {
					return nil, syntaxErrorf("Invalid filter passed to NUnit V2 driver: more than one top level element")
				}
				root = e
			} else {
				parent := open[len(open)-1]
				parent.children = append(parent.children, e)
			}
			open = append(open, e)
		case xml.EndElement:
			open = open[:len(open)-1]
		case xml.CharData:
			for _, e := range open {
				e.buf.Write(tok)
			}
		}
	}
	if len(open) > 0 {
		return nil, syntaxErrorf("Invalid filter passed to NUnit V2 driver: unclosed <%s>", open[len(open)-1].name)
	}
	return root, nil
}
