package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/discovery"
	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/bpe-tools/pluginlint/pkg/validator"
	"github.com/sourcegraph/conc/pool"
)

var inspectLog = logger.New("bundle:inspect")

// Report is the outcome of inspecting one bundle.
type Report struct {
	Dir             string
	Descriptors     []*discovery.PluginDescriptor
	DiscoveryErrors []*discovery.Error
	Findings        []finding.Finding
	// Err is set when the bundle could not be inspected at all.
	Err error
}

// Counts tallies the report's findings.
func (r *Report) Counts() finding.Counts {
	return finding.Count(r.Findings)
}

type descriptorJSON struct {
	Class       string   `json:"class"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Generation  string   `json:"generation"`
	Processes   []string `json:"processes"`
}

type discoveryErrorJSON struct {
	Kind         discovery.ErrorKind `json:"kind"`
	Registration string              `json:"registration"`
	Class        string              `json:"class"`
	Message      string              `json:"message"`
}

// MarshalJSON emits a summary of the descriptors and the full findings.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := struct {
		Dir             string               `json:"dir"`
		Descriptors     []descriptorJSON     `json:"descriptors"`
		DiscoveryErrors []discoveryErrorJSON `json:"discoveryErrors,omitempty"`
		Findings        []finding.Finding    `json:"findings"`
		Counts          finding.Counts       `json:"counts"`
		Error           string               `json:"error,omitempty"`
	}{
		Dir:         r.Dir,
		Descriptors: []descriptorJSON{},
		Findings:    r.Findings,
		Counts:      r.Counts(),
	}
	if out.Findings == nil {
		out.Findings = []finding.Finding{}
	}
	for _, d := range r.Descriptors {
		out.Descriptors = append(out.Descriptors, descriptorJSON{
			Class:       d.ClassName,
			Name:        d.Name,
			Version:     d.Version,
			ReleaseDate: d.ReleaseDate,
			Generation:  d.Generation.String(),
			Processes:   d.ProcessIDs,
		})
	}
	for _, e := range r.DiscoveryErrors {
		out.DiscoveryErrors = append(out.DiscoveryErrors, discoveryErrorJSON{
			Kind: e.Kind, Registration: e.Registration, Class: e.ClassName, Message: e.Error(),
		})
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Inspect opens dir and validates every descriptor it registers. Only an
// unusable bundle directory sets Report.Err; every other fault is a finding.
func Inspect(dir string, opts Options) *Report {
	report := &Report{Dir: dir}
	b, err := Open(dir, opts)
	if err != nil {
		inspectLog.Printf("Bundle unreadable: dir=%s err=%v", dir, err)
		report.Err = err
		return report
	}
	defer func() { _ = b.Close() }()

	for _, a := range b.Broken {
		report.Findings = append(report.Findings, finding.Errorf(finding.CategoryParse,
			finding.Location{File: a.Path}, "archive could not be opened: %v", a.Err))
	}

	res, err := discovery.Discover(b.Classes())
	if err != nil {
		report.Err = err
		return report
	}
	report.Descriptors = res.Descriptors
	report.DiscoveryErrors = res.Errors
	for _, e := range res.Errors {
		report.Findings = append(report.Findings, discoveryFinding(e))
	}

	v := validator.New(b.Classes(), validator.Options{ExtraFieldInjections: opts.ExtraFieldInjections})
	for _, d := range res.Descriptors {
		graphs, resources, loadFindings := load(b, d)
		report.Findings = append(report.Findings, loadFindings...)
		report.Findings = append(report.Findings, v.Validate(d, graphs, resources)...)
	}
	finding.Sort(report.Findings)
	inspectLog.Printf("Inspected bundle: dir=%s descriptors=%d findings=%d", dir, len(res.Descriptors), len(report.Findings))
	return report
}

func discoveryFinding(e *discovery.Error) finding.Finding {
	f := finding.Errorf(finding.CategoryDiscovery,
		finding.Location{ElementID: e.ClassName, File: e.Registration}, "%s", e.Error()).
		With("kind", string(e.Kind))
	if len(e.Missing) > 0 {
		f = f.With("missing", strings.Join(e.Missing, ","))
	}
	return f
}

// load reads the process definitions and resources declared by d. Files that are
// missing or cannot be parsed are reported and left out.
func load(b *Bundle, d *discovery.PluginDescriptor) ([]*bpmn.Graph, map[string]fhir.Resource, []finding.Finding) {
	var (
		graphs    []*bpmn.Graph
		resources = map[string]fhir.Resource{}
		findings  []finding.Finding
	)

	for _, path := range d.WorkflowGraphPaths {
		data, ok := readDeclared(b, path, finding.Location{ElementID: d.ClassName, File: path}, &findings)
		if !ok {
			continue
		}
		g, err := bpmn.Parse(path, data)
		if err != nil {
			findings = append(findings, finding.Errorf(finding.CategoryParse, finding.Location{File: path}, "%v", err))
			continue
		}
		graphs = append(graphs, g)
	}

	for _, pid := range d.ProcessIDs {
		for _, path := range d.ResourcesByProcessID[pid] {
			if _, done := resources[path]; done {
				continue
			}
			loc := finding.Location{ProcessID: pid, File: path}
			data, ok := readDeclared(b, path, loc, &findings)
			if !ok {
				continue
			}
			res, err := fhir.Load(path, data)
			if err != nil {
				findings = append(findings, finding.Errorf(finding.CategoryParse, loc, "%v", err))
				continue
			}
			resources[path] = res
		}
	}
	return graphs, resources, findings
}

func readDeclared(b *Bundle, path string, loc finding.Location, findings *[]finding.Finding) ([]byte, bool) {
	data, origin, err := b.ReadResource(path)
	switch {
	case errors.Is(err, classpath.ErrEntryNotFound):
		*findings = append(*findings, finding.Errorf(finding.CategoryMissingFile, loc, "declared file %s not found in bundle", path))
		return nil, false
	case err != nil:
		*findings = append(*findings, finding.Errorf(finding.CategoryMissingFile, loc, "read %s: %v", path, err))
		return nil, false
	}
	inspectLog.Printf("Read declared file: path=%s origin=%s bytes=%d", path, origin, len(data))
	return data, true
}

// InspectAll inspects dirs concurrently, at most workers at a time, and returns
// the reports sorted by directory. Bundles not started before ctx is done report
// the context error.
func InspectAll(ctx context.Context, dirs []string, opts Options, workers int) []*Report {
	if workers <= 0 {
		workers = 1
	}
	p := pool.NewWithResults[*Report]().WithMaxGoroutines(workers)
	for _, dir := range dirs {
		p.Go(func() *Report {
			if err := ctx.Err(); err != nil {
				return &Report{Dir: dir, Err: err}
			}
			return Inspect(dir, opts)
		})
	}
	reports := p.Wait()
	slices.SortStableFunc(reports, func(a, b *Report) int { return strings.Compare(a.Dir, b.Dir) })
	inspectLog.Printf("Inspected bundles: count=%d workers=%d", len(reports), workers)
	return reports
}
