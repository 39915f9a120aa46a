// Package fhir loads the FHIR resources a plugin ships, in XML or JSON form, into the
// few shapes pluginlint cross-checks against process definitions.
package fhir

import (
	"fmt"
	"strconv"
	"strings"
)

// Resource is one loaded resource file.
type Resource interface {
	Base() *Common
}

// Common holds the fields shared by every resource.
type Common struct {
	Path         string
	ResourceType string
	ID           string
	URL          string
	Version      string
	Date         string
	Status       string
	Name         string
	Profiles     []string
}

func (c *Common) Base() *Common { return c }

// ProcessAuthorization is one process-authorization extension of an ActivityDefinition.
type ProcessAuthorization struct {
	MessageName string
	TaskProfile string
	Requesters  []string
	Recipients  []string
}

// AuthorizationManifest is an ActivityDefinition: the process it describes and
// which messages each party may send to it.
type AuthorizationManifest struct {
	Common
	Kind           string
	Authorizations []ProcessAuthorization
}

// AllowedMessageNames returns the authorized message names in declaration order.
func (m *AuthorizationManifest) AllowedMessageNames() []string {
	var out []string
	seen := map[string]bool{}
	for _, a := range m.Authorizations {
		if a.MessageName != "" && !seen[a.MessageName] {
			seen[a.MessageName] = true
			out = append(out, a.MessageName)
		}
	}
	return out
}

// Allows reports whether messageName is authorized.
func (m *AuthorizationManifest) Allows(messageName string) bool {
	for _, a := range m.Authorizations {
		if a.MessageName == messageName {
			return true
		}
	}
	return false
}

// Requesters returns all requester codes.
func (m *AuthorizationManifest) Requesters() []string {
	var out []string
	for _, a := range m.Authorizations {
		out = append(out, a.Requesters...)
	}
	return out
}

// Recipients returns all recipient codes.
func (m *AuthorizationManifest) Recipients() []string {
	var out []string
	for _, a := range m.Authorizations {
		out = append(out, a.Recipients...)
	}
	return out
}

// Unbounded is the max value of an element without upper bound.
const Unbounded = "*"

// SchemaElement is one differential element of a StructureDefinition.
type SchemaElement struct {
	ID        string
	Path      string
	SliceName string
	// Min is -1 when not stated.
	Min       int
	Max       string
	FixedCode string
	FixedURI  string
}

// MaxOccurs returns the numeric upper bound, ok=false when absent or unbounded.
func (e SchemaElement) MaxOccurs() (int, bool) {
	if e.Max == "" || e.Max == Unbounded {
		return 0, false
	}
	n, err := strconv.Atoi(e.Max)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SchemaDefinition is a StructureDefinition profile.
type SchemaDefinition struct {
	Common
	Type           string
	BaseDefinition string
	Elements       []SchemaElement
}

// Element returns the element with the given id.
func (s *SchemaDefinition) Element(id string) (SchemaElement, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return SchemaElement{}, false
}

// Slice is a named slice of a repeating element with the code that identifies it.
type Slice struct {
	Element SchemaElement
	// Code is the fixed type.coding.code of the slice, empty if not fixed.
	Code string
	// System is the fixed type.coding.system of the slice, empty if not fixed.
	System string
}

// Slices returns the slices defined on path, e.g. "Task.input", in order.
func (s *SchemaDefinition) Slices(path string) []Slice {
	var out []Slice
	for _, e := range s.Elements {
		if e.Path != path || e.SliceName == "" {
			continue
		}
		sl := Slice{Element: e}
		prefix := e.ID + ".type.coding."
		for _, sub := range s.Elements {
			switch sub.ID {
			case prefix + "code":
				sl.Code = sub.FixedCode
			case prefix + "system":
				sl.System = sub.FixedURI
			}
		}
		out = append(out, sl)
	}
	return out
}

// Identifier is a FHIR identifier reference.
type Identifier struct {
	System string
	Value  string
}

// TaskInput is one Task.input with the coding of its type.
type TaskInput struct {
	System string
	Code   string
	Value  string
}

// MessageTemplate is a draft Task resource describing a message instance.
type MessageTemplate struct {
	Common
	InstantiatesCanonical string
	Intent                string
	AuthoredOn            string
	Requester             Identifier
	Recipients            []Identifier
	Inputs                []TaskInput
}

// DeclaredInputCodes returns the codes of all inputs in order.
func (t *MessageTemplate) DeclaredInputCodes() []string {
	out := make([]string, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		out = append(out, in.Code)
	}
	return out
}

// MessageName returns the value of the message-name input.
func (t *MessageTemplate) MessageName(system, code string) (string, bool) {
	for _, in := range t.Inputs {
		if in.Code == code && (system == "" || in.System == system) {
			return in.Value, true
		}
	}
	return "", false
}

// Generic holds resource types loaded only for their common fields:
// CodeSystem, ValueSet, Questionnaire and NamingSystem.
type Generic struct {
	Common
}

// ParseError reports a resource file that could not be loaded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("load FHIR resource %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var genericTypes = map[string]bool{
	"CodeSystem":    true,
	"ValueSet":      true,
	"Questionnaire": true,
	"NamingSystem":  true,
	"Library":       true,
	"Measure":       true,
}

// CanonicalURL strips a "|version" suffix from a canonical reference.
func CanonicalURL(ref string) string {
	if i := strings.IndexByte(ref, '|'); i >= 0 {
		return ref[:i]
	}
	return ref
}

// CanonicalVersion returns the "|version" suffix of a canonical reference.
func CanonicalVersion(ref string) string {
	if i := strings.IndexByte(ref, '|'); i >= 0 {
		return ref[i+1:]
	}
	return ""
}
