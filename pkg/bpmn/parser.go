// Package bpmn parses BPMN 2.0 process definitions with Camunda extensions into a
// read-only graph model.
//
// Only what pluginlint checks is modelled: flow nodes with their implementation
// classes, message references, field injections and listeners, plus sequence flows and
// message definitions. Elements are matched by local name, so any namespace prefix works.
package bpmn

import (
	"errors"
	"fmt"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/bpe-tools/pluginlint/pkg/xmltree"
)

var parserLog = logger.New("bpmn:parser")

// ParseError reports a file that could not be read as BPMN.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse BPMN %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a definitions document. A document without processes, or with
// empty processes, is valid.
func Parse(file string, data []byte) (*Graph, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, &ParseError{File: file, Err: err}
	}
	if root.Name != "definitions" {
		return nil, &ParseError{File: file, Err: fmt.Errorf("root element is %q, want definitions", root.Name)}
	}

	g := &Graph{File: file, Messages: map[string]Message{}}
	for _, m := range root.ChildrenNamed("message") {
		id := m.Attr("id")
		if id == "" {
			continue
		}
		g.Messages[id] = Message{ID: id, Name: m.Attr("name")}
	}

	for _, p := range root.ChildrenNamed("process") {
		proc := &Process{
			ID:           p.Attr("id"),
			Name:         p.Attr("name"),
			VersionTag:   p.Attr("versionTag"),
			IsExecutable: p.Attr("isExecutable") == "true",
			Line:         p.Line,
		}
		if proc.ID == "" {
			return nil, &ParseError{File: file, Err: fmt.Errorf("process at line %d has no id", p.Line)}
		}
		collectFlowElements(g, proc, p, "")
		g.Processes = append(g.Processes, proc)
	}

	if len(g.Processes) == 0 {
		parserLog.Printf("No processes in %s", file)
	}
	parserLog.Printf("Parsed BPMN: file=%s processes=%d messages=%d", file, len(g.Processes), len(g.Messages))
	return g, nil
}

// collectFlowElements adds the nodes and flows of container to proc. Sub-process
// contents are added recursively with parent set to the sub-process id.
func collectFlowElements(g *Graph, proc *Process, container *xmltree.Element, parent string) {
	for _, el := range container.Children {
		if el.Name == "sequenceFlow" {
			proc.Flows = append(proc.Flows, SequenceFlow{
				ID:     el.Attr("id"),
				Source: el.Attr("sourceRef"),
				Target: el.Attr("targetRef"),
				Line:   el.Line,
			})
			continue
		}
		kind, ok := nodeKinds[el.Name]
		if !ok {
			continue
		}
		n := parseNode(g, el, kind)
		n.ProcessID = proc.ID
		n.ParentID = parent
		proc.Nodes = append(proc.Nodes, n)
		if kind == SubProcess || kind == Transaction {
			collectFlowElements(g, proc, el, n.ID)
		}
	}
}

func parseNode(g *Graph, el *xmltree.Element, kind NodeKind) *Node {
	n := &Node{
		ID:         el.Attr("id"),
		Name:       el.Attr("name"),
		Kind:       kind,
		AttachedTo: el.Attr("attachedToRef"),
		Line:       el.Line,
	}

	n.ImplementationClass = el.Attr("class")
	n.DelegateExpression = firstNonEmpty(el.Attr("delegateExpression"), el.Attr("expression"))
	n.MessageRef = el.Attr("messageRef")

	if ext := el.Child("extensionElements"); ext != nil {
		n.FieldInjections = append(n.FieldInjections, parseFields(ext)...)
		n.Listeners = parseListeners(ext)
	}

	for _, c := range el.Children {
		def, ok := eventDefinitions[c.Name]
		if !ok {
			continue
		}
		// The first definition decides; multiple definitions are rare and unsupported.
		if n.EventDefinition == NoEventDefinition {
			n.EventDefinition = def
		}
		if def != MessageEvent {
			continue
		}
		if n.ImplementationClass == "" {
			n.ImplementationClass = c.Attr("class")
		}
		if n.DelegateExpression == "" {
			n.DelegateExpression = firstNonEmpty(c.Attr("delegateExpression"), c.Attr("expression"))
		}
		if n.MessageRef == "" {
			n.MessageRef = c.Attr("messageRef")
		}
		if ext := c.Child("extensionElements"); ext != nil {
			n.FieldInjections = append(n.FieldInjections, parseFields(ext)...)
		}
	}

	if n.IsMessageSend() {
		if f, ok := n.Field(constants.FieldMessageName); ok {
			n.MessageName = f.Value
		}
	} else if m, ok := g.Messages[n.MessageRef]; ok {
		n.MessageName = m.Name
	}
	return n
}

func parseFields(ext *xmltree.Element) []FieldInjection {
	var out []FieldInjection
	for _, f := range ext.ChildrenNamed("field") {
		fi := FieldInjection{Name: f.Attr("name"), Line: f.Line}
		switch {
		case hasAttr(f, "stringValue"):
			fi.Value = f.Attr("stringValue")
		case hasAttr(f, "expression"):
			fi.Value = f.Attr("expression")
			fi.Expression = true
		case f.Child("string") != nil:
			fi.Value = f.Child("string").Text
		case f.Child("expression") != nil:
			fi.Value = f.Child("expression").Text
			fi.Expression = true
		}
		out = append(out, fi)
	}
	return out
}

func parseListeners(ext *xmltree.Element) []Listener {
	var out []Listener
	for _, c := range ext.Children {
		var typ ListenerType
		switch c.Name {
		case "executionListener":
			typ = ExecutionListener
		case "taskListener":
			typ = TaskListener
		default:
			continue
		}
		out = append(out, Listener{
			Type:       typ,
			Event:      c.Attr("event"),
			Class:      c.Attr("class"),
			Expression: firstNonEmpty(c.Attr("delegateExpression"), c.Attr("expression")),
			Fields:     parseFields(c),
			Line:       c.Line,
		})
	}
	return out
}

func hasAttr(e *xmltree.Element, local string) bool {
	_, ok := e.LookupAttr(local)
	return ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
