// Package discovery finds the plugin descriptors registered in a bundle and reads their
// metadata statically.
//
// Registrations are the lines of META-INF/services files named after a descriptor
// interface. For each registered class the generation is decided from its supertypes and
// the metadata is read from the constants its accessor methods push, so the descriptor
// is never instantiated. A bad registration yields one Error and never stops the others.
package discovery

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/capability"
	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var discoveryLog = logger.New("discovery:discover")

// Classpath is the view of a bundle discovery needs.
// *classpath.ArchiveSet implements it.
type Classpath interface {
	capability.SignatureReader
	ReadClass(className string) (*classfile.Class, error)
	ServiceEntries(prefix string) ([]classpath.ServiceEntry, error)
}

// ErrorKind classifies a discovery failure.
type ErrorKind string

const (
	InvalidGeneration   ErrorKind = "InvalidGeneration"
	MissingMethods      ErrorKind = "MissingMethods"
	InstantiationFailed ErrorKind = "InstantiationFailed"
	ClassLoadingFailed  ErrorKind = "ClassLoadingFailed"
)

// Error reports one registration that did not yield a descriptor.
type Error struct {
	Kind ErrorKind
	// Registration is the origin of the registration, e.g.
	// "plugin.jar!/META-INF/services/dev.dsf.bpe.v1.ProcessPluginDefinition".
	Registration string
	ClassName    string
	// Missing lists absent accessors for MissingMethods.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (registered in %s)", e.Kind, e.ClassName, e.Registration)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PluginDescriptor is the statically read metadata of one registered descriptor.
type PluginDescriptor struct {
	ClassName    string
	Registration string
	// RegisteredGeneration is implied by the registration file name; Generation by
	// the class hierarchy. They differ when a class is registered under the wrong file.
	RegisteredGeneration constants.Generation
	Generation           constants.Generation

	Name    string
	Version string
	// ReleaseDate is an ISO-8601 date, empty when it could not be read.
	ReleaseDate string

	WorkflowGraphPaths   []string
	ResourcesByProcessID map[string][]string
	// ProcessIDs holds the keys of ResourcesByProcessID in declaration order.
	ProcessIDs []string
}

// GenerationMismatch reports whether the registration file disagrees with the class.
func (d *PluginDescriptor) GenerationMismatch() bool {
	return d.RegisteredGeneration != "" && d.RegisteredGeneration != d.Generation
}

// Result is the outcome of Discover.
type Result struct {
	Descriptors []*PluginDescriptor
	Errors      []*Error
}

// Discover reads every descriptor registration in cp. A provider class listed
// more than once, in one file or across archives, is discovered only from its
// first registration in classpath order.
func Discover(cp Classpath) (Result, error) {
	entries, err := cp.ServiceEntries(constants.ServicePrefix)
	if err != nil {
		return Result{}, fmt.Errorf("list service registrations: %w", err)
	}

	var res Result
	seen := make(map[string]bool)
	for _, entry := range entries {
		gen, ok := constants.GenerationForService(entry.Service)
		if !ok {
			discoveryLog.Printf("Skipping unrelated service file: %s", entry.Service)
			continue
		}
		origin := entry.Archive + "!/META-INF/services/" + entry.Service
		for _, className := range parseRegistration(entry.Data) {
			if seen[className] {
				discoveryLog.Printf("Skipping repeated registration: class=%s origin=%s", className, origin)
				continue
			}
			seen[className] = true
			d, derr := discoverOne(cp, className, origin, gen)
			if derr != nil {
				discoveryLog.Printf("Registration failed: %v", derr)
				res.Errors = append(res.Errors, derr)
				continue
			}
			discoveryLog.Printf("Discovered descriptor: class=%s name=%s version=%s generation=%s", d.ClassName, d.Name, d.Version, d.Generation)
			res.Descriptors = append(res.Descriptors, d)
		}
	}
	discoveryLog.Printf("Discovery complete: descriptors=%d errors=%d", len(res.Descriptors), len(res.Errors))
	return res, nil
}

// parseRegistration returns the class names of a service file in order.
func parseRegistration(data []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

func discoverOne(cp Classpath, className, origin string, registered constants.Generation) (*PluginDescriptor, *Error) {
	fail := func(kind ErrorKind, err error) *Error {
		return &Error{Kind: kind, Registration: origin, ClassName: className, Err: err}
	}

	sig, err := cp.ReadSignature(className)
	if err != nil {
		return nil, fail(ClassLoadingFailed, err)
	}

	gen, err := classifyGeneration(cp, className)
	if err != nil {
		return nil, fail(InvalidGeneration, err)
	}

	if sig.IsInterface() || sig.IsAbstract() {
		return nil, fail(InstantiationFailed, errors.New("descriptor class is abstract"))
	}
	class, err := cp.ReadClass(className)
	if err != nil {
		return nil, fail(ClassLoadingFailed, err)
	}
	if ctor, ok := class.NoArgMethod("<init>"); !ok || !ctor.IsPublic() {
		return nil, fail(InstantiationFailed, errors.New("no public no-arg constructor"))
	}

	accessors, missing := locateAccessors(cp, class)
	if len(missing) > 0 {
		e := fail(MissingMethods, nil)
		e.Missing = missing
		return nil, e
	}

	d := &PluginDescriptor{
		ClassName:            className,
		Registration:         origin,
		RegisteredGeneration: registered,
		Generation:           gen,
	}
	if err := readMetadata(d, accessors); err != nil {
		return nil, fail(ClassLoadingFailed, err)
	}
	return d, nil
}

// classifyGeneration decides the generation from the descriptor interfaces the
// class implements. Exactly one must match.
func classifyGeneration(cp Classpath, className string) (constants.Generation, error) {
	var matched []constants.Generation
	var unresolved []string
	for _, g := range constants.Generations {
		v := capability.ImplementsCapability(cp, className, capability.Of(constants.DescriptorInterface(g)))
		if v.Implemented {
			matched = append(matched, g)
			continue
		}
		unresolved = append(unresolved, v.Unresolved...)
	}
	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		if len(unresolved) > 0 {
			return "", fmt.Errorf("implements no descriptor interface; unresolved ancestors: %s", strings.Join(unresolved, ", "))
		}
		return "", errors.New("implements no descriptor interface")
	default:
		return "", fmt.Errorf("implements descriptor interfaces of generations %v", matched)
	}
}

// accessor is a located accessor method and its declaring class.
type accessor struct {
	class  *classfile.Class
	method *classfile.Member
}

// locateAccessors finds the concrete no-arg accessors on the class or its
// superclasses. Superclasses that cannot be read end the search.
func locateAccessors(cp Classpath, class *classfile.Class) (map[string]accessor, []string) {
	found := make(map[string]accessor, len(constants.RequiredAccessors))
	seen := map[string]bool{}
	for c := class; c != nil && !seen[c.Name]; {
		seen[c.Name] = true
		for _, name := range constants.RequiredAccessors {
			if _, ok := found[name]; ok {
				continue
			}
			if m, ok := c.NoArgMethod(name); ok && m.Code != nil {
				found[name] = accessor{class: c, method: m}
			}
		}
		if len(found) == len(constants.RequiredAccessors) || c.SuperName == "" || capability.IsJDKType(c.SuperName) {
			break
		}
		next, err := cp.ReadClass(c.SuperName)
		if err != nil {
			discoveryLog.Printf("Accessor search stopped: class=%s err=%v", c.SuperName, err)
			break
		}
		c = next
	}

	var missing []string
	for _, name := range constants.RequiredAccessors {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	return found, missing
}
