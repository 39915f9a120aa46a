// Package validator cross-checks a discovered plugin descriptor against its process
// definitions and FHIR resources.
//
// # Validation Architecture
//
// Checks are grouped by subject, one file each:
//
//   - validator.go: entry point and shared lookups
//   - descriptor_validation.go: descriptor metadata (name, version, release date)
//   - process_validation.go: process ids, version tags, sequence flows, manifests
//   - implementation_validation.go: implementation classes of nodes and listeners
//   - message_validation.go: message names against authorization manifests
//   - field_injection_validation.go: field injection keys, placeholders and references
//   - resource_validation.go: resource placeholders and message template references
//   - cardinality_validation.go: message templates against their profile's slices
//   - placeholders.go: placeholder helpers shared by the checks above
//
// Every check appends findings; nothing aborts validation. A node or resource that
// passes all checks applicable to it gets a SUCCESS finding.
package validator

import (
	"slices"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/capability"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/discovery"
	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var validatorLog = logger.New("validator:validate")

// Options tunes validation.
type Options struct {
	// ExtraFieldInjections extends the allowed field injection keys.
	ExtraFieldInjections []string
}

// Validator checks descriptors against one bundle's classes.
type Validator struct {
	classes       capability.SignatureReader
	allowedFields []string
}

// New returns a Validator resolving implementation classes through classes.
func New(classes capability.SignatureReader, opts Options) *Validator {
	allowed := slices.Clone(constants.AllowedFieldInjections)
	for _, f := range opts.ExtraFieldInjections {
		if !slices.Contains(allowed, f) {
			allowed = append(allowed, f)
		}
	}
	return &Validator{classes: classes, allowedFields: allowed}
}

// Validate runs every check with default options.
func Validate(classes capability.SignatureReader, d *discovery.PluginDescriptor, graphs []*bpmn.Graph, resources map[string]fhir.Resource) []finding.Finding {
	return New(classes, Options{}).Validate(d, graphs, resources)
}

// Validate checks d. graphs are the parsed process definitions of d and
// resources the loaded resources keyed by their declared path. Files that could
// not be loaded are expected to be absent and reported by the caller.
func (v *Validator) Validate(d *discovery.PluginDescriptor, graphs []*bpmn.Graph, resources map[string]fhir.Resource) []finding.Finding {
	validatorLog.Printf("Validating descriptor: class=%s graphs=%d resources=%d", d.ClassName, len(graphs), len(resources))
	r := newRun(v, d, graphs, resources)

	r.checkDescriptor()
	for _, g := range graphs {
		if len(g.Processes) == 0 {
			r.checkEmptyGraph(g)
		}
		for _, p := range g.Processes {
			r.checkProcess(g, p)
			for _, n := range p.Nodes {
				r.checkNode(g, n)
			}
		}
	}
	r.checkUndeclaredProcesses()
	r.checkResources()

	finding.Sort(r.findings)
	validatorLog.Printf("Validation complete: class=%s findings=%d", d.ClassName, len(r.findings))
	return r.findings
}

// run holds the state of validating one descriptor.
type run struct {
	v         *Validator
	d         *discovery.PluginDescriptor
	graphs    []*bpmn.Graph
	resources map[string]fhir.Resource

	manifestsByURL map[string]*fhir.AuthorizationManifest
	schemasByURL   map[string]*fhir.SchemaDefinition
	findings       []finding.Finding
}

func newRun(v *Validator, d *discovery.PluginDescriptor, graphs []*bpmn.Graph, resources map[string]fhir.Resource) *run {
	r := &run{
		v:              v,
		d:              d,
		graphs:         graphs,
		resources:      resources,
		manifestsByURL: map[string]*fhir.AuthorizationManifest{},
		schemasByURL:   map[string]*fhir.SchemaDefinition{},
	}
	for _, res := range resources {
		switch x := res.(type) {
		case *fhir.AuthorizationManifest:
			r.manifestsByURL[x.URL] = x
		case *fhir.SchemaDefinition:
			r.schemasByURL[x.URL] = x
		}
	}
	return r
}

func (r *run) add(f finding.Finding) {
	r.findings = append(r.findings, f)
}

// subject collects the findings of one node or resource so that a SUCCESS
// finding can be added when none of them is a problem.
type subject struct {
	r       *run
	loc     finding.Location
	checked bool
	failed  bool
}

func (r *run) subject(loc finding.Location) *subject {
	return &subject{r: r, loc: loc}
}

func (s *subject) add(f finding.Finding) {
	if f.Severity >= finding.Warn {
		s.failed = true
	}
	s.r.add(f)
}

func (s *subject) errorf(cat finding.Category, format string, args ...any) {
	s.add(finding.Errorf(cat, s.loc, format, args...))
}

func (s *subject) warnf(cat finding.Category, format string, args ...any) {
	s.add(finding.Warnf(cat, s.loc, format, args...))
}

func (s *subject) infof(cat finding.Category, format string, args ...any) {
	s.add(finding.Infof(cat, s.loc, format, args...))
}

// done adds the SUCCESS finding when at least one check ran and none failed.
func (s *subject) done(format string, args ...any) {
	if s.checked && !s.failed {
		s.r.add(finding.Successf(finding.CategoryValidated, s.loc, format, args...))
	}
}

// processResources returns the loaded resources declared for pid, in declaration order.
func (r *run) processResources(pid string) []fhir.Resource {
	var out []fhir.Resource
	for _, path := range r.d.ResourcesByProcessID[pid] {
		if res, ok := r.resources[path]; ok {
			out = append(out, res)
		}
	}
	return out
}

// processManifests returns the authorization manifests declared for pid.
func (r *run) processManifests(pid string) []*fhir.AuthorizationManifest {
	var out []*fhir.AuthorizationManifest
	for _, res := range r.processResources(pid) {
		if m, ok := res.(*fhir.AuthorizationManifest); ok {
			out = append(out, m)
		}
	}
	return out
}

func nodeLocation(g *bpmn.Graph, n *bpmn.Node) finding.Location {
	return finding.Location{ProcessID: n.ProcessID, ElementID: n.ID, File: g.File, Line: n.Line}
}

func (r *run) checkNode(g *bpmn.Graph, n *bpmn.Node) {
	s := r.subject(nodeLocation(g, n))
	r.checkImplementation(s, n)
	r.checkListeners(s, n)
	r.checkMessage(s, n)
	r.checkFieldInjections(s, n)
	s.done("%s %s passed all checks", n.Kind, n.ID)
}
