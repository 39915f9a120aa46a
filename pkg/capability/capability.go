// Package capability decides statically whether a class satisfies an implementation contract.
//
// The decision walks the supertype graph breadth first using class headers only, so no
// plugin code is ever loaded or run.
package capability

import (
	"errors"
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var capabilityLog = logger.New("capability:resolver")

// SignatureReader provides class headers by dotted name.
// *classpath.ArchiveSet implements it.
type SignatureReader interface {
	ReadSignature(className string) (*classfile.Signature, error)
}

// Capability is a contract type plus API types known to satisfy it.
type Capability struct {
	Name     string
	Subtypes []string
}

// Of returns the capability for a contract name with its known subtypes.
func Of(name string) Capability {
	return Capability{Name: name, Subtypes: constants.KnownSubtypes[name]}
}

func (c Capability) matches(name string) bool {
	return name == c.Name || slices.Contains(c.Subtypes, name)
}

// Reason explains a negative verdict.
type Reason string

const (
	ReasonClassNotFound      Reason = "ClassNotFound"
	ReasonMalformedClass     Reason = "MalformedClass"
	ReasonNotImplemented     Reason = "NotImplemented"
	ReasonAncestorUnresolved Reason = "AncestorUnresolved"
)

// Verdict is the outcome of ImplementsCapability.
type Verdict struct {
	Implemented bool
	// ResolvedInterfaceName is the supertype that matched.
	ResolvedInterfaceName string
	FailureReason         Reason
	// Unresolved lists ancestors that could not be read, in visit order.
	Unresolved []string
	// Err is the read error of the start class for ClassNotFound and MalformedClass.
	Err error
}

// IsJDKType reports whether a type belongs to the platform and is never shipped in a bundle.
func IsJDKType(name string) bool {
	return strings.HasPrefix(name, "java.") || strings.HasPrefix(name, "javax.")
}

// ImplementsCapability walks the supertypes of className breadth first and reports
// whether one of them is the capability or a known subtype of it. Each type is
// visited at most once, which also ends the walk on cyclic hierarchies.
func ImplementsCapability(r SignatureReader, className string, c Capability) Verdict {
	capabilityLog.Printf("Resolving capability: class=%s capability=%s", className, c.Name)

	start, err := r.ReadSignature(className)
	if err != nil {
		reason := ReasonClassNotFound
		if errors.Is(err, classfile.ErrMalformedClass) {
			reason = ReasonMalformedClass
		}
		capabilityLog.Printf("Start class unreadable: class=%s reason=%s", className, reason)
		return Verdict{FailureReason: reason, Err: err}
	}

	visited := map[string]bool{className: true}
	queue := []*classfile.Signature{start}
	var unresolved []string

	for len(queue) > 0 {
		sig := queue[0]
		queue = queue[1:]

		supertypes := make([]string, 0, len(sig.Interfaces)+1)
		supertypes = append(supertypes, sig.Interfaces...)
		if sig.SuperName != "" {
			supertypes = append(supertypes, sig.SuperName)
		}

		for _, name := range supertypes {
			if c.matches(name) {
				capabilityLog.Printf("Capability resolved: class=%s via=%s declared_by=%s", className, name, sig.Name)
				return Verdict{Implemented: true, ResolvedInterfaceName: name}
			}
		}

		for _, name := range supertypes {
			if visited[name] || IsJDKType(name) {
				continue
			}
			visited[name] = true
			next, err := r.ReadSignature(name)
			if err != nil {
				unresolved = append(unresolved, name)
				continue
			}
			queue = append(queue, next)
		}
	}

	if len(unresolved) > 0 {
		capabilityLog.Printf("Capability not resolved: class=%s unresolved=%v", className, unresolved)
		return Verdict{FailureReason: ReasonAncestorUnresolved, Unresolved: unresolved}
	}
	capabilityLog.Printf("Capability not implemented: class=%s visited=%d", className, len(visited))
	return Verdict{FailureReason: ReasonNotImplemented}
}

var _ SignatureReader = (*classpath.ArchiveSet)(nil)
