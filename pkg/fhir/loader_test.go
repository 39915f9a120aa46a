//go:build !integration

package fhir

import (
	"testing"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activityDefinitionXML = `<?xml version="1.0" encoding="UTF-8"?>
<ActivityDefinition xmlns="http://hl7.org/fhir">
  <meta><profile value="http://dsf.dev/fhir/StructureDefinition/activity-definition"/></meta>
  <extension url="http://dsf.dev/fhir/StructureDefinition/extension-process-authorization">
    <extension url="message-name"><valueString value="ping"/></extension>
    <extension url="task-profile"><valueCanonical value="http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"/></extension>
    <extension url="requester"><valueCoding><system value="http://dsf.dev/fhir/CodeSystem/process-authorization"/><code value="REMOTE_ALL"/></valueCoding></extension>
    <extension url="recipient"><valueCoding><code value="LOCAL_ALL"/></valueCoding></extension>
  </extension>
  <extension url="http://example.org/other"><valueString value="ignored"/></extension>
  <url value="http://dsf.dev/bpe/Process/ping"/>
  <version value="#{version}"/>
  <name value="Ping"/>
  <status value="unknown"/>
  <date value="#{date}"/>
  <kind value="Task"/>
</ActivityDefinition>`

const structureDefinitionXML = `<StructureDefinition xmlns="http://hl7.org/fhir">
  <url value="http://dsf.dev/fhir/StructureDefinition/task-ping"/>
  <version value="#{version}"/>
  <status value="unknown"/>
  <type value="Task"/>
  <baseDefinition value="http://dsf.dev/fhir/StructureDefinition/task-base"/>
  <differential>
    <element id="Task.input"><path value="Task.input"/><min value="2"/><max value="3"/></element>
    <element id="Task.input:message-name"><path value="Task.input"/><sliceName value="message-name"/><min value="1"/><max value="1"/></element>
    <element id="Task.input:message-name.type.coding.system"><path value="Task.input.type.coding.system"/><fixedUri value="http://dsf.dev/fhir/CodeSystem/bpmn-message"/></element>
    <element id="Task.input:message-name.type.coding.code"><path value="Task.input.type.coding.code"/><fixedCode value="message-name"/></element>
    <element id="Task.input:target"><path value="Task.input"/><sliceName value="target"/><max value="*"/></element>
  </differential>
</StructureDefinition>`

const taskXML = `<Task xmlns="http://hl7.org/fhir">
  <meta><profile value="http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"/></meta>
  <instantiatesCanonical value="http://dsf.dev/bpe/Process/ping|#{version}"/>
  <status value="draft"/>
  <intent value="order"/>
  <authoredOn value="#{date}"/>
  <requester><type value="Organization"/><identifier><system value="http://dsf.dev/sid/organization-identifier"/><value value="#{organization}"/></identifier></requester>
  <restriction><recipient><identifier><system value="http://dsf.dev/sid/organization-identifier"/><value value="#{organization}"/></identifier></recipient></restriction>
  <input>
    <type><coding><system value="http://dsf.dev/fhir/CodeSystem/bpmn-message"/><code value="message-name"/></coding></type>
    <valueString value="startPing"/>
  </input>
</Task>`

const taskJSON = `{
  "resourceType": "Task",
  "meta": {"profile": ["http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"]},
  "instantiatesCanonical": "http://dsf.dev/bpe/Process/ping|#{version}",
  "status": "draft",
  "intent": "order",
  "authoredOn": "#{date}",
  "requester": {"type": "Organization", "identifier": {"system": "http://dsf.dev/sid/organization-identifier", "value": "#{organization}"}},
  "restriction": {"recipient": [{"identifier": {"system": "http://dsf.dev/sid/organization-identifier", "value": "#{organization}"}}]},
  "input": [{"type": {"coding": [{"system": "http://dsf.dev/fhir/CodeSystem/bpmn-message", "code": "message-name"}]}, "valueString": "startPing"}]
}`

const activityDefinitionJSON = `{
  "resourceType": "ActivityDefinition",
  "url": "http://dsf.dev/bpe/Process/ping",
  "version": "#{version}",
  "extension": [{
    "url": "http://dsf.dev/fhir/StructureDefinition/extension-process-authorization",
    "extension": [
      {"url": "message-name", "valueString": "ping"},
      {"url": "task-profile", "valueCanonical": "http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"},
      {"url": "requester", "valueCoding": {"code": "REMOTE_ALL"}},
      {"url": "recipient", "valueCoding": {"code": "LOCAL_ALL"}}
    ]
  }]
}`

func TestLoad_ActivityDefinition(t *testing.T) {
	for name, data := range map[string]string{"xml": activityDefinitionXML, "json": activityDefinitionJSON} {
		t.Run(name, func(t *testing.T) {
			res, err := Load("fhir/ActivityDefinition/ping."+name, []byte(data))
			require.NoError(t, err)
			m, ok := res.(*AuthorizationManifest)
			require.True(t, ok, "got %T", res)

			assert.Equal(t, "http://dsf.dev/bpe/Process/ping", m.URL)
			assert.Equal(t, constants.PlaceholderVersion, m.Version)
			assert.Equal(t, []string{"ping"}, m.AllowedMessageNames())
			assert.True(t, m.Allows("ping"))
			assert.False(t, m.Allows("pong"))
			assert.Equal(t, []string{"REMOTE_ALL"}, m.Requesters())
			assert.Equal(t, []string{"LOCAL_ALL"}, m.Recipients())
			require.Len(t, m.Authorizations, 1)
			assert.Equal(t, "http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}", m.Authorizations[0].TaskProfile)
		})
	}
}

func TestLoad_StructureDefinition(t *testing.T) {
	res, err := Load("fhir/StructureDefinition/task-ping.xml", []byte(structureDefinitionXML))
	require.NoError(t, err)
	s, ok := res.(*SchemaDefinition)
	require.True(t, ok)

	assert.Equal(t, "Task", s.Type)
	require.Len(t, s.Elements, 5)

	input, ok := s.Element("Task.input")
	require.True(t, ok)
	assert.Equal(t, 2, input.Min)
	upper, ok := input.MaxOccurs()
	assert.True(t, ok)
	assert.Equal(t, 3, upper)

	slices := s.Slices("Task.input")
	require.Len(t, slices, 2)
	assert.Equal(t, "message-name", slices[0].Element.SliceName)
	assert.Equal(t, "message-name", slices[0].Code)
	assert.Equal(t, constants.BPMNMessageSystem, slices[0].System)
	assert.Equal(t, "target", slices[1].Element.SliceName)
	assert.Equal(t, -1, slices[1].Element.Min, "unset min")
	_, bounded := slices[1].Element.MaxOccurs()
	assert.False(t, bounded)
}

func TestLoad_Task(t *testing.T) {
	for name, data := range map[string]string{"xml": taskXML, "json": taskJSON} {
		t.Run(name, func(t *testing.T) {
			res, err := Load("fhir/Task/ping."+name, []byte(data))
			require.NoError(t, err)
			task, ok := res.(*MessageTemplate)
			require.True(t, ok)

			assert.Equal(t, []string{"http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"}, task.Profiles)
			assert.Equal(t, "http://dsf.dev/bpe/Process/ping|#{version}", task.InstantiatesCanonical)
			assert.Equal(t, "draft", task.Status)
			assert.Equal(t, constants.PlaceholderDate, task.AuthoredOn)
			assert.Equal(t, constants.PlaceholderOrganization, task.Requester.Value)
			require.Len(t, task.Recipients, 1)
			assert.Equal(t, constants.PlaceholderOrganization, task.Recipients[0].Value)
			assert.Equal(t, []string{"message-name"}, task.DeclaredInputCodes())
			msg, ok := task.MessageName(constants.BPMNMessageSystem, constants.MessageNameCode)
			assert.True(t, ok)
			assert.Equal(t, "startPing", msg)
		})
	}
}

func TestLoad_Generic(t *testing.T) {
	res, err := Load("fhir/CodeSystem/ping.json", []byte(`{"resourceType":"CodeSystem","url":"http://x/cs","version":"#{version}","date":"#{date}"}`))
	require.NoError(t, err)
	g, ok := res.(*Generic)
	require.True(t, ok)
	assert.Equal(t, "CodeSystem", g.ResourceType)
	assert.Equal(t, "#{date}", g.Date)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"broken json", `{"resourceType": `},
		{"json without type", `{"url": "x"}`},
		{"unknown json type", `{"resourceType": "Patient"}`},
		{"unknown xml type", `<Patient xmlns="http://hl7.org/fhir"/>`},
		{"broken xml", `<Task><status value="draft"></Task>`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("bad", []byte(tt.data))
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad", pe.Path)
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "http://x/p", CanonicalURL("http://x/p|1.0"))
	assert.Equal(t, "1.0", CanonicalVersion("http://x/p|1.0"))
	assert.Equal(t, "http://x/p", CanonicalURL("http://x/p"))
	assert.Empty(t, CanonicalVersion("http://x/p"))
}
