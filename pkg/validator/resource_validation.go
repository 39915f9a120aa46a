package validator

import (
	"maps"
	"slices"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var resourceLog = logger.New("validator:resource")

const draftStatus = "draft"

func (r *run) checkResources() {
	owner := map[string]string{}
	for _, pid := range r.d.ProcessIDs {
		for _, path := range r.d.ResourcesByProcessID[pid] {
			if _, ok := owner[path]; !ok {
				owner[path] = pid
			}
		}
	}

	for _, path := range slices.Sorted(maps.Keys(r.resources)) {
		res := r.resources[path]
		c := res.Base()
		s := r.subject(finding.Location{ProcessID: owner[path], ElementID: c.ResourceType, File: path})
		s.checked = true
		resourceLog.Printf("Checking resource: path=%s type=%s", path, c.ResourceType)

		if t, ok := res.(*fhir.MessageTemplate); ok {
			r.checkMessageTemplate(s, t)
		} else {
			checkVersionAndDate(s, c)
		}
		s.done("%s %s passed all checks", c.ResourceType, path)
	}
}

func checkVersionAndDate(s *subject, c *fhir.Common) {
	if c.Version != constants.PlaceholderVersion {
		s.add(finding.Warnf(finding.CategoryVersionPlaceholder, s.loc,
			"%s version is %q, expected %s", c.ResourceType, c.Version, constants.PlaceholderVersion).
			With("version", c.Version))
	}
	if c.Date != constants.PlaceholderDate {
		s.add(finding.Warnf(finding.CategoryDatePlaceholder, s.loc,
			"%s date is %q, expected %s", c.ResourceType, c.Date, constants.PlaceholderDate).
			With("date", c.Date))
	}
}

func (r *run) checkMessageTemplate(s *subject, t *fhir.MessageTemplate) {
	if t.Status != draftStatus {
		s.warnf(finding.CategoryResource, "Task status is %q, expected %s", t.Status, draftStatus)
	}
	if t.AuthoredOn != constants.PlaceholderDate {
		s.add(finding.Warnf(finding.CategoryDatePlaceholder, s.loc,
			"Task authoredOn is %q, expected %s", t.AuthoredOn, constants.PlaceholderDate).
			With("authoredOn", t.AuthoredOn))
	}

	checkOrganization(s, "requester", t.Requester)
	for _, rcpt := range t.Recipients {
		checkOrganization(s, "recipient", rcpt)
	}

	r.checkTemplateTarget(s, t)

	if len(t.Profiles) == 0 {
		s.errorf(finding.CategoryReference, "Task declares no profile")
		return
	}
	schema, ok := r.schemasByURL[fhir.CanonicalURL(t.Profiles[0])]
	if !ok {
		s.add(finding.Errorf(finding.CategoryReference, s.loc,
			"Task profile %q does not match any StructureDefinition in the bundle", t.Profiles[0]).
			With("profile", t.Profiles[0]))
		return
	}
	checkCardinality(s, t, schema)
}

func checkOrganization(s *subject, role string, id fhir.Identifier) {
	if id.Value == constants.PlaceholderOrganization {
		return
	}
	s.add(finding.Errorf(finding.CategoryOrganizationPlaceholder, s.loc,
		"Task %s identifier is %q, expected %s", role, id.Value, constants.PlaceholderOrganization).
		With("role", role).
		With("value", id.Value))
}

// checkTemplateTarget checks that the template instantiates a process of the bundle
// and that its message name is authorized there.
func (r *run) checkTemplateTarget(s *subject, t *fhir.MessageTemplate) {
	if t.InstantiatesCanonical == "" {
		s.errorf(finding.CategoryReference, "Task has no instantiatesCanonical")
		return
	}
	if !hasPlaceholder(t.InstantiatesCanonical, constants.PlaceholderVersion) {
		s.add(finding.Warnf(finding.CategoryVersionPlaceholder, s.loc,
			"Task instantiatesCanonical %q has no %s", t.InstantiatesCanonical, constants.PlaceholderVersion).
			With("instantiatesCanonical", t.InstantiatesCanonical))
	}
	m, ok := r.manifestsByURL[fhir.CanonicalURL(t.InstantiatesCanonical)]
	if !ok {
		s.add(finding.Errorf(finding.CategoryReference, s.loc,
			"Task instantiatesCanonical %q does not match any ActivityDefinition in the bundle", t.InstantiatesCanonical).
			With("instantiatesCanonical", t.InstantiatesCanonical))
		return
	}
	name, ok := t.MessageName(constants.BPMNMessageSystem, constants.MessageNameCode)
	if !ok {
		s.errorf(finding.CategoryMessageAuthorization, "Task has no %s input", constants.MessageNameCode)
		return
	}
	if !m.Allows(name) {
		s.add(finding.Errorf(finding.CategoryMessageAuthorization, s.loc,
			"Task message %q is not authorized by ActivityDefinition %s", name, m.URL).
			With("messageName", name))
	}
}
