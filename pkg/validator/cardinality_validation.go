package validator

import (
	"strconv"

	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
)

const taskInputPath = "Task.input"

// templateElements maps the Task elements a MessageTemplate models to their
// occurrence count in the template.
var templateElements = []struct {
	path  string
	count func(*fhir.MessageTemplate) int
}{
	{"Task.meta.profile", func(t *fhir.MessageTemplate) int { return len(t.Profiles) }},
	{"Task.instantiatesCanonical", func(t *fhir.MessageTemplate) int { return present(t.InstantiatesCanonical) }},
	{"Task.authoredOn", func(t *fhir.MessageTemplate) int { return present(t.AuthoredOn) }},
	{"Task.requester", func(t *fhir.MessageTemplate) int { return present(t.Requester.System + t.Requester.Value) }},
	{"Task.restriction.recipient", func(t *fhir.MessageTemplate) int { return len(t.Recipients) }},
	{taskInputPath, func(t *fhir.MessageTemplate) int { return len(t.Inputs) }},
}

func present(v string) int {
	if v == "" {
		return 0
	}
	return 1
}

// checkCardinality counts the template's elements against the matching elements
// of schema, and its inputs against each coded Task.input slice.
func checkCardinality(s *subject, t *fhir.MessageTemplate, schema *fhir.SchemaDefinition) {
	for _, te := range templateElements {
		if e, ok := schema.Element(te.path); ok {
			checkOccurs(s, finding.CategoryCardinality, te.path, e, te.count(t))
		}
	}

	for _, sl := range schema.Slices(taskInputPath) {
		if sl.Code == "" {
			continue
		}
		n := 0
		for _, in := range t.Inputs {
			if in.Code == sl.Code && (sl.System == "" || in.System == sl.System) {
				n++
			}
		}
		checkOccurs(s, finding.CategorySliceCardinality, taskInputPath+":"+sl.Element.SliceName, sl.Element, n)
	}
}

func checkOccurs(s *subject, cat finding.Category, what string, e fhir.SchemaElement, actual int) {
	if upper, ok := e.MaxOccurs(); ok && actual > upper {
		s.add(finding.Errorf(cat, s.loc,
			"%s occurs %d times, at most %d allowed by %s", what, actual, upper, e.ID).
			With("actual", strconv.Itoa(actual)).
			With("allowed", strconv.Itoa(upper)))
	}
	if e.Min > 0 && actual < e.Min {
		s.add(finding.Errorf(cat, s.loc,
			"%s occurs %d times, at least %d required by %s", what, actual, e.Min, e.ID).
			With("actual", strconv.Itoa(actual)).
			With("required", strconv.Itoa(e.Min)))
	}
}
