// Package finding defines the single record type every check reports.
package finding

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Severity orders findings from informational to blocking.
type Severity int

const (
	Success Severity = iota
	Info
	Warn
	Error
)

var severityNames = [...]string{"SUCCESS", "INFO", "WARN", "ERROR"}

func (s Severity) String() string {
	if s < Success || s > Error {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts the names returned by String, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return Warn, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category is the closed set of rule families.
type Category string

const (
	CategoryDescriptor              Category = "descriptor"
	CategoryDiscovery               Category = "discovery"
	CategoryProcess                 Category = "process"
	CategoryParse                   Category = "parse"
	CategoryMissingFile             Category = "missing-file"
	CategoryImplementationClass     Category = "implementation-class"
	CategoryMessageAuthorization    Category = "message-authorization"
	CategoryFieldInjection          Category = "field-injection"
	CategoryUnknownFieldInjection   Category = "unknown-field-injection"
	CategoryVersionPlaceholder      Category = "version-placeholder"
	CategoryDatePlaceholder         Category = "date-placeholder"
	CategoryOrganizationPlaceholder Category = "organization-placeholder"
	CategoryReference               Category = "reference"
	CategoryCardinality             Category = "cardinality"
	CategorySliceCardinality        Category = "slice-cardinality"
	CategoryResource                Category = "resource"
	CategorySequenceFlow            Category = "sequence-flow"
	CategoryValidated               Category = "validated"
)

// Categories lists every category.
var Categories = []Category{
	CategoryDescriptor,
	CategoryDiscovery,
	CategoryProcess,
	CategoryParse,
	CategoryMissingFile,
	CategoryImplementationClass,
	CategoryMessageAuthorization,
	CategoryFieldInjection,
	CategoryUnknownFieldInjection,
	CategoryVersionPlaceholder,
	CategoryDatePlaceholder,
	CategoryOrganizationPlaceholder,
	CategoryReference,
	CategoryCardinality,
	CategorySliceCardinality,
	CategoryResource,
	CategorySequenceFlow,
	CategoryValidated,
}

// Location is where a finding applies.
type Location struct {
	ProcessID string `json:"processId,omitempty"`
	ElementID string `json:"elementId,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

func (l Location) String() string {
	var parts []string
	if l.File != "" {
		f := l.File
		if l.Line > 0 {
			f = fmt.Sprintf("%s:%d", f, l.Line)
		}
		parts = append(parts, f)
	}
	if l.ProcessID != "" {
		parts = append(parts, l.ProcessID)
	}
	if l.ElementID != "" {
		parts = append(parts, l.ElementID)
	}
	return strings.Join(parts, " ")
}

// Finding is one reported result.
type Finding struct {
	Severity Severity          `json:"severity"`
	Category Category          `json:"category"`
	Location Location          `json:"location"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", f.Severity, f.Category, f.Location, f.Message)
}

// With returns a copy of f with a detail added.
func (f Finding) With(key, value string) Finding {
	d := make(map[string]string, len(f.Details)+1)
	for k, v := range f.Details {
		d[k] = v
	}
	d[key] = value
	f.Details = d
	return f
}

func newFinding(sev Severity, cat Category, loc Location, format string, args ...any) Finding {
	return Finding{Severity: sev, Category: cat, Location: loc, Message: fmt.Sprintf(format, args...)}
}

// Errorf returns an ERROR finding.
func Errorf(cat Category, loc Location, format string, args ...any) Finding {
	return newFinding(Error, cat, loc, format, args...)
}

// Warnf returns a WARN finding.
func Warnf(cat Category, loc Location, format string, args ...any) Finding {
	return newFinding(Warn, cat, loc, format, args...)
}

// Infof returns an INFO finding.
func Infof(cat Category, loc Location, format string, args ...any) Finding {
	return newFinding(Info, cat, loc, format, args...)
}

// Successf returns a SUCCESS finding.
func Successf(cat Category, loc Location, format string, args ...any) Finding {
	return newFinding(Success, cat, loc, format, args...)
}

// Compare orders findings by process id, element id, file, category and message.
func Compare(a, b Finding) int {
	return cmp.Or(
		cmp.Compare(a.Location.ProcessID, b.Location.ProcessID),
		cmp.Compare(a.Location.ElementID, b.Location.ElementID),
		cmp.Compare(a.Location.File, b.Location.File),
		cmp.Compare(a.Category, b.Category),
		cmp.Compare(a.Message, b.Message),
	)
}

// Sort orders findings in place. Equal findings keep their relative order.
func Sort(fs []Finding) {
	slices.SortStableFunc(fs, Compare)
}

// Counts tallies findings per severity.
type Counts struct {
	Success int `json:"success"`
	Info    int `json:"info"`
	Warn    int `json:"warn"`
	Error   int `json:"error"`
}

// Count tallies fs.
func Count(fs []Finding) Counts {
	var c Counts
	for _, f := range fs {
		switch f.Severity {
		case Success:
			c.Success++
		case Info:
			c.Info++
		case Warn:
			c.Warn++
		case Error:
			c.Error++
		}
	}
	return c
}

// AtLeast reports whether any finding has severity s or higher.
func AtLeast(fs []Finding, s Severity) bool {
	for _, f := range fs {
		if f.Severity >= s {
			return true
		}
	}
	return false
}
