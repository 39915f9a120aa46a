package validator

import (
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
)

func (r *run) checkFieldInjections(s *subject, n *bpmn.Node) {
	if len(n.FieldInjections) == 0 && !n.IsMessageSend() {
		return
	}
	s.checked = true

	for _, f := range n.FieldInjections {
		if !slices.Contains(r.v.allowedFields, f.Name) {
			s.add(finding.Errorf(finding.CategoryUnknownFieldInjection, r.fieldLocation(s, f),
				"unknown field injection %q on %s %s, expected one of %s", f.Name, n.Kind, n.ID, strings.Join(r.v.allowedFields, ", ")).
				With("field", f.Name))
		}
	}

	if n.IsMessageSend() {
		for _, name := range constants.AllowedFieldInjections {
			if _, ok := n.Field(name); !ok {
				s.add(finding.Warnf(finding.CategoryFieldInjection, s.loc,
					"%s %s has no %s field injection", n.Kind, n.ID, name).
					With("field", name))
			}
		}
	}

	if f, ok := n.Field(constants.FieldProfile); ok && !f.Expression && !isExpression(f.Value) {
		r.checkVersionedField(s, n, f)
		if _, known := r.schemasByURL[fhir.CanonicalURL(f.Value)]; !known {
			s.add(finding.Errorf(finding.CategoryReference, r.fieldLocation(s, f),
				"profile %q of %s does not match any StructureDefinition in the bundle", f.Value, n.ID).
				With("profile", f.Value))
		}
	}
	if f, ok := n.Field(constants.FieldInstantiatesCanonical); ok && !f.Expression && !isExpression(f.Value) {
		r.checkVersionedField(s, n, f)
		if _, known := r.manifestsByURL[fhir.CanonicalURL(f.Value)]; !known {
			s.add(finding.Errorf(finding.CategoryReference, r.fieldLocation(s, f),
				"instantiatesCanonical %q of %s does not match any ActivityDefinition in the bundle", f.Value, n.ID).
				With("instantiatesCanonical", f.Value))
		}
	}
}

// checkVersionedField warns when a field that must track the plugin version
// carries a concrete value.
func (r *run) checkVersionedField(s *subject, n *bpmn.Node, f bpmn.FieldInjection) {
	if hasPlaceholder(f.Value, constants.PlaceholderVersion) {
		return
	}
	s.add(finding.Warnf(finding.CategoryVersionPlaceholder, r.fieldLocation(s, f),
		"field %s of %s has value %q without %s", f.Name, n.ID, f.Value, constants.PlaceholderVersion).
		With("field", f.Name).
		With("value", f.Value))
}

func (r *run) fieldLocation(s *subject, f bpmn.FieldInjection) finding.Location {
	loc := s.loc
	if f.Line > 0 {
		loc.Line = f.Line
	}
	return loc
}
