package validator

import (
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bpmn"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/fhir"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var messageLog = logger.New("validator:message")

func (r *run) checkMessage(s *subject, n *bpmn.Node) {
	switch {
	case n.IsMessageSend():
		r.checkSentMessage(s, n)
	case n.IsMessageReceive():
		r.checkReceivedMessage(s, n)
	}
}

// checkSentMessage checks a send node's message name against the manifests of its
// own process and, when the target is part of the bundle, the manifest of the
// process it instantiates. Either one authorizing the message is enough.
func (r *run) checkSentMessage(s *subject, n *bpmn.Node) {
	if n.MessageName == "" {
		return
	}
	if f, ok := n.Field(constants.FieldMessageName); ok && f.Expression {
		return
	}
	s.checked = true

	manifests := r.processManifests(n.ProcessID)
	scope := "process " + n.ProcessID
	if f, ok := n.Field(constants.FieldInstantiatesCanonical); ok && !f.Expression {
		if m, ok := r.manifestsByURL[fhir.CanonicalURL(f.Value)]; ok && !slices.Contains(manifests, m) {
			manifests = append(slices.Clip(manifests), m)
			scope += " or " + m.URL
		}
	}
	messageLog.Printf("Checking sent message: node=%s message=%s manifests=%d", n.ID, n.MessageName, len(manifests))
	r.requireAuthorized(s, n, manifests, scope)
}

func (r *run) checkReceivedMessage(s *subject, n *bpmn.Node) {
	s.checked = true
	if n.MessageName == "" {
		s.warnf(finding.CategoryMessageAuthorization, "%s %s references no named message", n.Kind, n.ID)
		return
	}
	r.requireAuthorized(s, n, r.processManifests(n.ProcessID), "process "+n.ProcessID)
}

func (r *run) requireAuthorized(s *subject, n *bpmn.Node, manifests []*fhir.AuthorizationManifest, scope string) {
	var allowed []string
	for _, m := range manifests {
		if m.Allows(n.MessageName) {
			return
		}
		allowed = append(allowed, m.AllowedMessageNames()...)
	}
	s.add(finding.Errorf(finding.CategoryMessageAuthorization, s.loc,
		"message %q of %s %s is not authorized by any ActivityDefinition of %s", n.MessageName, n.Kind, n.ID, scope).
		With("messageName", n.MessageName).
		With("allowed", strings.Join(allowed, ",")))
}
