package validator

import (
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/capability"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var implementationLog = logger.New("validator:implementation")

// requiresClass reports whether a node of this shape is executed by a plugin class.
func requiresClass(n *bpmn.Node) bool {
	return n.Kind == bpmn.ServiceTask || n.IsMessageSend()
}

// nodeCapability returns the contract an implementation class of n must satisfy.
func nodeCapability(gen constants.Generation, n *bpmn.Node) capability.Capability {
	if gen == constants.GenerationV1 {
		if n.IsMessageSend() {
			return capability.Of(constants.V1AbstractTaskMessageSend)
		}
		return capability.Of(constants.V1JavaDelegate)
	}
	switch {
	case n.Kind == bpmn.SendTask:
		return capability.Of(constants.V2MessageSendTask)
	case n.Kind == bpmn.IntermediateThrowEvent && n.IsMessageSend():
		return capability.Of(constants.V2MessageIntermediateThrowEvent)
	case n.Kind == bpmn.EndEvent && n.IsMessageSend():
		return capability.Of(constants.V2MessageEndEvent)
	default:
		return capability.Of(constants.V2ServiceTask)
	}
}

// listenerCapability returns the contract a listener class must satisfy.
func listenerCapability(gen constants.Generation, t bpmn.ListenerType) capability.Capability {
	switch {
	case gen == constants.GenerationV1 && t == bpmn.TaskListener:
		return capability.Of(constants.V1TaskListener)
	case gen == constants.GenerationV1:
		return capability.Of(constants.V1ExecutionListener)
	case t == bpmn.TaskListener:
		return capability.Of(constants.V2UserTaskListener)
	default:
		return capability.Of(constants.V2ExecutionListener)
	}
}

func (r *run) checkImplementation(s *subject, n *bpmn.Node) {
	switch {
	case n.ImplementationClass != "":
		r.checkClass(s, n.ImplementationClass, nodeCapability(r.d.Generation, n), string(n.Kind))
	case n.DelegateExpression != "":
		s.checked = true
		s.infof(finding.CategoryImplementationClass,
			"%s %s uses expression %q which cannot be checked statically", n.Kind, n.ID, n.DelegateExpression)
	case requiresClass(n):
		s.checked = true
		s.errorf(finding.CategoryImplementationClass, "%s %s has no implementation class", n.Kind, n.ID)
	}
}

func (r *run) checkListeners(s *subject, n *bpmn.Node) {
	for _, l := range n.Listeners {
		if l.Class == "" {
			if l.Expression != "" {
				s.infof(finding.CategoryImplementationClass,
					"%s listener on %s uses expression %q which cannot be checked statically", l.Type, n.ID, l.Expression)
			}
			continue
		}
		r.checkClass(s, l.Class, listenerCapability(r.d.Generation, l.Type), string(l.Type)+" listener")
	}
}

// checkClass resolves className against c and reports a failure on s.
func (r *run) checkClass(s *subject, className string, c capability.Capability, role string) {
	s.checked = true
	v := capability.ImplementsCapability(r.v.classes, className, c)
	implementationLog.Printf("Resolved %s class: class=%s capability=%s implemented=%v reason=%s",
		role, className, c.Name, v.Implemented, v.FailureReason)
	if v.Implemented {
		return
	}

	var f finding.Finding
	switch v.FailureReason {
	case capability.ReasonClassNotFound:
		f = finding.Errorf(finding.CategoryImplementationClass, s.loc,
			"%s class %s not found in bundle", role, className)
	case capability.ReasonMalformedClass:
		f = finding.Errorf(finding.CategoryImplementationClass, s.loc,
			"%s class %s could not be read: %v", role, className, v.Err)
	case capability.ReasonAncestorUnresolved:
		f = finding.Errorf(finding.CategoryImplementationClass, s.loc,
			"%s class %s does not implement %s; some supertypes could not be read", role, className, c.Name).
			With("unresolved", strings.Join(v.Unresolved, ","))
	default:
		f = finding.Errorf(finding.CategoryImplementationClass, s.loc,
			"%s class %s does not implement %s", role, className, c.Name)
	}
	s.add(f.With("class", className).With("capability", c.Name).With("reason", string(v.FailureReason)))
}
