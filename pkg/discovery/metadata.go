package discovery

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/constants"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// readMetadata fills d from the constants pushed by each accessor.
func readMetadata(d *PluginDescriptor, accessors map[string]accessor) error {
	consts := make(map[string][]classfile.Constant, len(accessors))
	for name, a := range accessors {
		c, err := a.class.Constants(a.method)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		consts[name] = c
	}

	d.Name = firstString(consts[constants.AccessorName])
	d.Version = firstString(consts[constants.AccessorVersion])
	d.ReleaseDate = releaseDate(consts[constants.AccessorReleaseDate])
	d.WorkflowGraphPaths = stringValues(consts[constants.AccessorProcessModels])
	d.ResourcesByProcessID, d.ProcessIDs = groupResources(stringValues(consts[constants.AccessorResourcesByPID]))
	return nil
}

func firstString(consts []classfile.Constant) string {
	for _, c := range consts {
		if c.Kind == classfile.StringConstant {
			return c.Str
		}
	}
	return ""
}

func stringValues(consts []classfile.Constant) []string {
	var out []string
	for _, c := range consts {
		if c.Kind == classfile.StringConstant {
			out = append(out, c.Str)
		}
	}
	return out
}

// releaseDate accepts a date literal such as "2024-05-01" or the three integer
// arguments of a LocalDate.of(year, month, day) call.
func releaseDate(consts []classfile.Constant) string {
	for _, c := range consts {
		if c.Kind == classfile.StringConstant && isoDatePattern.MatchString(c.Str) {
			return c.Str
		}
	}
	var ints []int64
	for _, c := range consts {
		if c.Kind == classfile.IntConstant {
			ints = append(ints, c.Int)
		}
	}
	if len(ints) < 3 {
		return ""
	}
	y, m, day := ints[0], ints[1], ints[2]
	if y < 1000 || y > 9999 || m < 1 || m > 12 || day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, day)
}

// IsResourcePath reports whether s names a resource file rather than a process id.
func IsResourcePath(s string) bool {
	switch strings.ToLower(path.Ext(s)) {
	case ".xml", ".json":
		return true
	}
	return strings.Contains(s, "/")
}

// groupResources splits the string constants of the resources accessor into
// groups: a process id opens a group and the resource paths that follow belong
// to it. Paths before the first process id are dropped.
func groupResources(values []string) (map[string][]string, []string) {
	groups := map[string][]string{}
	var order []string
	current := ""
	for _, v := range values {
		if !IsResourcePath(v) {
			current = v
			if _, ok := groups[v]; !ok {
				groups[v] = nil
				order = append(order, v)
			}
			continue
		}
		if current == "" {
			discoveryLog.Printf("Dropping resource without process id: %s", v)
			continue
		}
		groups[current] = append(groups[current], v)
	}
	return groups, order
}
