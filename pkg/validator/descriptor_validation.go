package validator

import (
	"regexp"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	"golang.org/x/mod/semver"
)

var descriptorLog = logger.New("validator:descriptor")

// Plugin versions have four parts: the API major followed by the plugin's own
// major.minor.patch, e.g. 1.2.0.3.
var pluginVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+\.\d+\.\d+)$`)

// resourceVersion returns the major.minor.patch part of a plugin version and
// whether it is a valid semantic version.
func resourceVersion(pluginVersion string) (string, bool) {
	m := pluginVersionPattern.FindStringSubmatch(pluginVersion)
	if m == nil {
		return "", false
	}
	v := "v" + m[2]
	if !semver.IsValid(v) {
		descriptorLog.Printf("Invalid semantic version: %s", v)
		return "", false
	}
	return strings.TrimPrefix(semver.Canonical(v), "v"), true
}

func (r *run) checkDescriptor() {
	d := r.d
	s := r.subject(finding.Location{ElementID: d.ClassName, File: d.Registration})
	s.checked = true

	if strings.TrimSpace(d.Name) == "" {
		s.errorf(finding.CategoryDescriptor, "descriptor %s returns no name", d.ClassName)
	}

	switch {
	case d.Version == "":
		s.errorf(finding.CategoryDescriptor, "descriptor %s returns no version", d.ClassName)
	default:
		if _, ok := resourceVersion(d.Version); !ok {
			s.add(finding.Warnf(finding.CategoryDescriptor, s.loc,
				"version %q is not of the form <api>.<major>.<minor>.<patch>", d.Version).
				With("version", d.Version))
		}
	}

	if d.ReleaseDate == "" {
		s.warnf(finding.CategoryDescriptor, "release date of %s could not be read", d.ClassName)
	}

	if len(d.WorkflowGraphPaths) == 0 {
		s.errorf(finding.CategoryDescriptor, "descriptor %s declares no process models", d.ClassName)
	}

	if d.GenerationMismatch() {
		s.add(finding.Warnf(finding.CategoryDescriptor, s.loc,
			"%s implements the %s API but is registered as %s", d.ClassName, d.Generation, d.RegisteredGeneration).
			With("generation", d.Generation.String()).
			With("registered", d.RegisteredGeneration.String()))
	}

	descriptorLog.Printf("Checked descriptor: class=%s failed=%v", d.ClassName, s.failed)
	s.done("descriptor %s %s (%s)", d.Name, d.Version, d.Generation)
}
