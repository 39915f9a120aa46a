// Package xmltree parses XML into a small element tree matched by local name.
//
// BPMN and FHIR documents are written with varying namespace prefixes (bpmn:, bpmn2:,
// default namespaces). Lookups here ignore the namespace so callers can match on
// local names only.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxDepth bounds element nesting.
const MaxDepth = 256

// Element is one XML element.
type Element struct {
	Space    string
	Name     string
	Attrs    []xml.Attr
	Children []*Element
	// Text is the concatenated character data directly inside the element.
	Text string
	// Line is the line of the start tag, counted from 1.
	Line int
}

// Parse reads a single document and returns its root element.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var root *Element
	var stack []*Element
	var text []*strings.Builder
	lineAt := lineCounter(data)

	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) >= MaxDepth {
				return nil, fmt.Errorf("element nesting exceeds %d levels", MaxDepth)
			}
			e := &Element{Space: t.Name.Space, Name: t.Name.Local, Attrs: t.Attr, Line: lineAt(offset)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = e
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, e)
			}
			stack = append(stack, e)
			text = append(text, &strings.Builder{})
		case xml.EndElement:
			top := len(stack) - 1
			stack[top].Text = strings.TrimSpace(text[top].String())
			stack = stack[:top]
			text = text[:top]
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Name)
	}
	return root, nil
}

// lineCounter returns a function mapping byte offsets to line numbers. Offsets
// must be passed in ascending order.
func lineCounter(data []byte) func(int64) int {
	line, pos := 1, int64(0)
	return func(offset int64) int {
		if offset > int64(len(data)) {
			offset = int64(len(data))
		}
		line += bytes.Count(data[pos:offset], []byte{'\n'})
		pos = offset
		// The offset precedes leading whitespace of the token.
		rest := data[offset:]
		trimmed := bytes.TrimLeft(rest, " \t\r\n")
		return line + bytes.Count(rest[:len(rest)-len(trimmed)], []byte{'\n'})
	}
}

// Attr returns the value of the attribute with the given local name in any
// namespace, or "".
func (e *Element) Attr(local string) string {
	v, _ := e.LookupAttr(local)
	return v
}

// LookupAttr is Attr that also reports presence.
func (e *Element) LookupAttr(local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given local name.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children {
		if c.Name == local {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the direct children with the given local name.
func (e *Element) ChildrenNamed(local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == local {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a chain of first children by local name.
func (e *Element) Path(locals ...string) *Element {
	cur := e
	for _, l := range locals {
		if cur == nil {
			return nil
		}
		cur = cur.Child(l)
	}
	return cur
}

// Value returns the value attribute of the child with the given local name, the
// FHIR XML convention for primitives.
func (e *Element) Value(local string) string {
	if c := e.Child(local); c != nil {
		return c.Attr("value")
	}
	return ""
}

// Walk calls fn for e and every descendant in document order. Returning false
// skips the descendants of the element.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}
