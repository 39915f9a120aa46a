package validator

import (
	"regexp"
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var processLog = logger.New("validator:process")

var processIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+_[a-zA-Z0-9-]+$`)

func (r *run) checkEmptyGraph(g *bpmn.Graph) {
	processLog.Printf("Process model defines no process: file=%s", g.File)
	r.add(finding.Warnf(finding.CategoryProcess, finding.Location{File: g.File},
		"process model %s defines no process", g.File))
}

func (r *run) checkProcess(g *bpmn.Graph, p *bpmn.Process) {
	loc := finding.Location{ProcessID: p.ID, File: g.File, Line: p.Line}
	processLog.Printf("Checking process: id=%s nodes=%d flows=%d", p.ID, len(p.Nodes), len(p.Flows))

	if !processIDPattern.MatchString(p.ID) {
		r.add(finding.Warnf(finding.CategoryProcess, loc,
			"process id %q is not of the form <organization>_<name>", p.ID))
	}

	if p.VersionTag != constants.PlaceholderVersion {
		r.add(finding.Warnf(finding.CategoryVersionPlaceholder, loc,
			"process %s has versionTag %q, expected %s", p.ID, p.VersionTag, constants.PlaceholderVersion).
			With("versionTag", p.VersionTag))
	}

	if len(p.Nodes) == 0 {
		r.add(finding.Warnf(finding.CategoryProcess, loc, "process %s has no flow nodes", p.ID))
	}

	for _, f := range p.Flows {
		floc := finding.Location{ProcessID: p.ID, ElementID: f.ID, File: g.File, Line: f.Line}
		for _, end := range []struct{ role, id string }{{"source", f.Source}, {"target", f.Target}} {
			if end.id == "" {
				r.add(finding.Errorf(finding.CategorySequenceFlow, floc, "sequence flow %s has no %s", f.ID, end.role))
				continue
			}
			if _, ok := p.Node(end.id); !ok {
				r.add(finding.Errorf(finding.CategorySequenceFlow, floc,
					"sequence flow %s references unknown %s %q", f.ID, end.role, end.id))
			}
		}
	}

	if _, ok := r.d.ResourcesByProcessID[p.ID]; !ok {
		r.add(finding.Errorf(finding.CategoryProcess, loc,
			"process %s has no resources declared by %s", p.ID, r.d.ClassName))
		return
	}

	manifests := r.processManifests(p.ID)
	if len(manifests) == 0 {
		r.add(finding.Errorf(finding.CategoryMessageAuthorization, loc,
			"process %s has no ActivityDefinition among its resources", p.ID))
		return
	}
	suffix := constants.ProcessURLSegment + processName(p.ID)
	for _, m := range manifests {
		if !strings.HasSuffix(m.URL, suffix) {
			r.add(finding.Warnf(finding.CategoryResource,
				finding.Location{ProcessID: p.ID, File: m.Path},
				"ActivityDefinition url %q does not end with %s", m.URL, suffix).
				With("url", m.URL))
		}
	}
}

// checkUndeclaredProcesses reports process ids with declared resources but no
// process definition.
func (r *run) checkUndeclaredProcesses() {
	defined := map[string]bool{}
	for _, g := range r.graphs {
		for _, p := range g.Processes {
			defined[p.ID] = true
		}
	}
	pids := r.d.ProcessIDs
	if len(pids) == 0 {
		for pid := range r.d.ResourcesByProcessID {
			pids = append(pids, pid)
		}
		slices.Sort(pids)
	}
	for _, pid := range pids {
		if !defined[pid] {
			r.add(finding.Warnf(finding.CategoryProcess,
				finding.Location{ProcessID: pid, File: r.d.Registration},
				"resources are declared for process %s but no process model defines it", pid))
		}
	}
}
