//go:build !integration

package bundle

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/classfile/classfiletest"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:camunda="http://camunda.org/schema/1.0/bpmn" id="defs">
  <bpmn:process id="dsfdev_ping" isExecutable="true" camunda:versionTag="#{version}">
    <bpmn:startEvent id="start">
      <bpmn:messageEventDefinition messageRef="msgPing"/>
    </bpmn:startEvent>
    <bpmn:sendTask id="send" camunda:class="org.example.SendPing">
      <bpmn:extensionElements>
        <camunda:field name="profile"><camunda:string>http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}</camunda:string></camunda:field>
        <camunda:field name="messageName"><camunda:string>ping</camunda:string></camunda:field>
        <camunda:field name="instantiatesCanonical"><camunda:string>http://dsf.dev/bpe/Process/ping|#{version}</camunda:string></camunda:field>
      </bpmn:extensionElements>
    </bpmn:sendTask>
    <bpmn:endEvent id="end"/>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="send"/>
    <bpmn:sequenceFlow id="f2" sourceRef="send" targetRef="end"/>
  </bpmn:process>
  <bpmn:message id="msgPing" name="ping"/>
</bpmn:definitions>`

const pingActivityDefinition = `<ActivityDefinition xmlns="http://hl7.org/fhir">
  <extension url="http://dsf.dev/fhir/StructureDefinition/extension-process-authorization">
    <extension url="message-name"><valueString value="ping"/></extension>
    <extension url="task-profile"><valueCanonical value="http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"/></extension>
  </extension>
  <url value="http://dsf.dev/bpe/Process/ping"/>
  <version value="#{version}"/>
  <date value="#{date}"/>
  <status value="unknown"/>
  <kind value="Task"/>
</ActivityDefinition>`

const pingStructureDefinition = `<StructureDefinition xmlns="http://hl7.org/fhir">
  <url value="http://dsf.dev/fhir/StructureDefinition/task-ping"/>
  <version value="#{version}"/>
  <date value="#{date}"/>
  <type value="Task"/>
  <differential>
    <element id="Task.input"><path value="Task.input"/><min value="1"/><max value="2"/></element>
    <element id="Task.input:message-name"><path value="Task.input"/><sliceName value="message-name"/><min value="1"/><max value="1"/></element>
    <element id="Task.input:message-name.type.coding.code"><path value="Task.input.type.coding.code"/><fixedCode value="message-name"/></element>
  </differential>
</StructureDefinition>`

const pingTask = `{
  "resourceType": "Task",
  "meta": {"profile": ["http://dsf.dev/fhir/StructureDefinition/task-ping|#{version}"]},
  "instantiatesCanonical": "http://dsf.dev/bpe/Process/ping|#{version}",
  "status": "draft",
  "intent": "order",
  "authoredOn": "#{date}",
  "requester": {"identifier": {"value": "#{organization}"}},
  "restriction": {"recipient": [{"identifier": {"value": "#{organization}"}}]},
  "input": [{"type": {"coding": [{"system": "http://dsf.dev/fhir/CodeSystem/bpmn-message", "code": "message-name"}]}, "valueString": "ping"}]
}`

const (
	descriptorName = "org.example.PingProcessPluginDefinition"
	sendClass      = "org.example.SendPing"
)

func descriptorClass(resources ...any) []byte {
	pushes := resources
	if pushes == nil {
		pushes = []any{"dsfdev_ping", "fhir/ActivityDefinition/ping.xml", "fhir/StructureDefinition/task-ping.xml", "fhir/Task/ping.json"}
	}
	return classfiletest.Build(classfiletest.Class{
		Name:       descriptorName,
		Interfaces: []string{constants.DescriptorV2},
		Methods: []classfiletest.Method{
			classfiletest.PublicConstructor(),
			classfiletest.Getter(constants.AccessorName, "ping"),
			classfiletest.Getter(constants.AccessorVersion, "2.0.0.1"),
			classfiletest.Getter(constants.AccessorReleaseDate, 2026, 1, 2),
			classfiletest.Getter(constants.AccessorProcessModels, "bpe/ping.bpmn"),
			classfiletest.Getter(constants.AccessorResourcesByPID, pushes...),
		},
	})
}

func pluginEntries() map[string][]byte {
	return map[string][]byte{
		classfile.EntryName(descriptorName): descriptorClass(),
		classfile.EntryName(sendClass): classfiletest.Build(classfiletest.Class{
			Name:       sendClass,
			Interfaces: []string{constants.V2MessageSendTask},
			Methods:    []classfiletest.Method{classfiletest.PublicConstructor()},
		}),
		"META-INF/services/" + constants.DescriptorV2: []byte(descriptorName + "\n"),
		"bpe/ping.bpmn":                          []byte(pingBPMN),
		"fhir/ActivityDefinition/ping.xml":       []byte(pingActivityDefinition),
		"fhir/StructureDefinition/task-ping.xml": []byte(pingStructureDefinition),
		"fhir/Task/ping.json":                    []byte(pingTask),
	}
}

func writeJarBundle(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plugins"), 0o755))
	require.NoError(t, classfiletest.WriteJar(filepath.Join(dir, "plugins", "ping.jar"), entries))
	return dir
}

func writeFile(t *testing.T, dir, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func problems(fs []finding.Finding) []string {
	var out []string
	for _, f := range fs {
		if f.Severity >= finding.Warn {
			out = append(out, f.String())
		}
	}
	return out
}

func TestInspect_JarBundle(t *testing.T) {
	dir := writeJarBundle(t, pluginEntries())

	r := Inspect(dir, Options{})

	require.NoError(t, r.Err)
	require.Len(t, r.Descriptors, 1)
	assert.Equal(t, "ping", r.Descriptors[0].Name)
	assert.Equal(t, "2026-01-02", r.Descriptors[0].ReleaseDate)
	assert.Empty(t, r.DiscoveryErrors)
	assert.Empty(t, problems(r.Findings))
	assert.Positive(t, r.Counts().Success)
}

func TestInspect_SourceTree(t *testing.T) {
	dir := t.TempDir()
	for name, data := range pluginEntries() {
		switch {
		case strings.HasSuffix(name, ".class"), strings.HasPrefix(name, "META-INF/"):
			writeFile(t, dir, "target/classes/"+name, data)
		default:
			writeFile(t, dir, "src/main/resources/"+name, data)
		}
	}
	// Jars below skipped directories are never opened.
	writeFile(t, dir, "node_modules/x/broken.jar", []byte("not a zip"))

	r := Inspect(dir, Options{})

	require.NoError(t, r.Err)
	require.Len(t, r.Descriptors, 1)
	assert.Empty(t, problems(r.Findings))
}

func TestInspect_ClassesAndBuiltJar(t *testing.T) {
	dir := t.TempDir()
	entries := pluginEntries()
	for name, data := range entries {
		switch {
		case strings.HasSuffix(name, ".class"), strings.HasPrefix(name, "META-INF/"):
			writeFile(t, dir, "target/classes/"+name, data)
		default:
			writeFile(t, dir, "src/main/resources/"+name, data)
		}
	}
	require.NoError(t, classfiletest.WriteJar(filepath.Join(dir, "target", "ping.jar"), entries))

	r := Inspect(dir, Options{})

	require.NoError(t, r.Err)
	require.Len(t, r.Descriptors, 1, "the jar repeats the compiled registration")
	assert.Equal(t, "target/classes!/META-INF/services/"+constants.DescriptorV2, r.Descriptors[0].Registration)
	assert.Empty(t, r.DiscoveryErrors)
	assert.Empty(t, problems(r.Findings))
}

func TestInspect_BrokenJar(t *testing.T) {
	dir := writeJarBundle(t, pluginEntries())
	writeFile(t, dir, "plugins/broken.jar", []byte("not a zip"))

	r := Inspect(dir, Options{})

	require.NoError(t, r.Err, "a broken jar does not fail the bundle")
	require.Len(t, r.Descriptors, 1)
	parse := filterCategory(r.Findings, finding.CategoryParse)
	require.Len(t, parse, 1)
	assert.Equal(t, "plugins/broken.jar", parse[0].Location.File)
	assert.Equal(t, finding.Error, parse[0].Severity)
}

func TestInspect_RootsShadowJars(t *testing.T) {
	dir := writeJarBundle(t, pluginEntries())
	writeFile(t, dir, "src/main/resources/bpe/ping.bpmn", []byte("<definitions"))

	r := Inspect(dir, Options{})

	parse := filterCategory(r.Findings, finding.CategoryParse)
	require.Len(t, parse, 1)
	assert.Equal(t, "bpe/ping.bpmn", parse[0].Location.File)
}

func filterCategory(fs []finding.Finding, cat finding.Category) []finding.Finding {
	var out []finding.Finding
	for _, f := range fs {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func TestInspect_MissingAndBrokenFiles(t *testing.T) {
	entries := pluginEntries()
	entries[classfile.EntryName(descriptorName)] = descriptorClass(
		"dsfdev_ping", "fhir/ActivityDefinition/ping.xml", "fhir/StructureDefinition/task-ping.xml",
		"fhir/Task/ping.json", "fhir/CodeSystem/missing.xml", "fhir/Patient/p.json")
	entries["fhir/Patient/p.json"] = []byte(`{"resourceType": "Patient"}`)
	dir := writeJarBundle(t, entries)

	r := Inspect(dir, Options{})
	require.NoError(t, r.Err)

	missing := filterCategory(r.Findings, finding.CategoryMissingFile)
	require.Len(t, missing, 1)
	assert.Equal(t, finding.Error, missing[0].Severity)
	assert.Equal(t, "fhir/CodeSystem/missing.xml", missing[0].Location.File)
	assert.Equal(t, "dsfdev_ping", missing[0].Location.ProcessID)

	parse := filterCategory(r.Findings, finding.CategoryParse)
	require.Len(t, parse, 1)
	assert.Equal(t, "fhir/Patient/p.json", parse[0].Location.File)
}

func TestInspect_DiscoveryErrors(t *testing.T) {
	entries := pluginEntries()
	entries["META-INF/services/"+constants.DescriptorV2] = []byte(descriptorName + "\norg.example.Missing\n")
	dir := writeJarBundle(t, entries)

	r := Inspect(dir, Options{})

	require.Len(t, r.Descriptors, 1)
	require.Len(t, r.DiscoveryErrors, 1)
	disc := filterCategory(r.Findings, finding.CategoryDiscovery)
	require.Len(t, disc, 1)
	assert.Equal(t, "org.example.Missing", disc[0].Location.ElementID)
	assert.Equal(t, "ClassLoadingFailed", disc[0].Details["kind"])
}

func TestInspect_UnreadableDirectory(t *testing.T) {
	r := Inspect(filepath.Join(t.TempDir(), "nope"), Options{})
	require.ErrorIs(t, r.Err, ErrUnreadableBundle)
	assert.Empty(t, r.Findings)
}

func TestInspectAll(t *testing.T) {
	good := writeJarBundle(t, pluginEntries())
	bad := filepath.Join(t.TempDir(), "missing")
	dirs := []string{good, bad}

	reports := InspectAll(context.Background(), dirs, Options{}, 4)

	require.Len(t, reports, 2)
	assert.LessOrEqual(t, reports[0].Dir, reports[1].Dir)
	for _, r := range reports {
		if r.Dir == bad {
			assert.Error(t, r.Err)
		} else {
			assert.NoError(t, r.Err)
			assert.Len(t, r.Descriptors, 1)
		}
	}
}

func TestInspectAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := InspectAll(ctx, []string{writeJarBundle(t, pluginEntries())}, Options{}, 0)

	require.Len(t, reports, 1)
	assert.ErrorIs(t, reports[0].Err, context.Canceled)
}

func TestReportJSON(t *testing.T) {
	r := Inspect(writeJarBundle(t, pluginEntries()), Options{})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	descriptors, ok := out["descriptors"].([]any)
	require.True(t, ok)
	require.Len(t, descriptors, 1)
	d := descriptors[0].(map[string]any)
	assert.Equal(t, descriptorName, d["class"])
	assert.Equal(t, "v2", d["generation"])
	assert.Equal(t, []any{"dsfdev_ping"}, d["processes"])
	assert.NotContains(t, out, "error")
}

func TestBundle_ReadResource(t *testing.T) {
	dir := writeJarBundle(t, pluginEntries())
	b, err := Open(dir, Options{})
	require.NoError(t, err)
	defer b.Close()

	data, origin, err := b.ReadResource("/bpe/ping.bpmn")
	require.NoError(t, err)
	assert.Equal(t, pingBPMN, string(data))
	assert.Equal(t, "ping.jar!/bpe/ping.bpmn", origin)

	_, _, err = b.ReadResource("../etc/passwd")
	require.Error(t, err)
}
