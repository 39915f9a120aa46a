//go:build !integration

package xmltree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:camunda="http://camunda.org/schema/1.0/bpmn">
  <bpmn:process id="p1" camunda:versionTag="#{version}">
    <bpmn:startEvent id="start"/>
    <bpmn:documentation>  hello  </bpmn:documentation>
  </bpmn:process>
  <process id="p2"/>
</bpmn:definitions>`

func TestParse(t *testing.T) {
	root, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "definitions", root.Name)
	assert.Equal(t, 2, root.Line)

	procs := root.ChildrenNamed("process")
	require.Len(t, procs, 2, "prefixed and unprefixed elements match by local name")
	assert.Equal(t, "p1", procs[0].Attr("id"))
	assert.Equal(t, "#{version}", procs[0].Attr("versionTag"))
	assert.Equal(t, 3, procs[0].Line)
	assert.Equal(t, 7, procs[1].Line)

	start := procs[0].Child("startEvent")
	require.NotNil(t, start)
	assert.Equal(t, 4, start.Line)
	assert.Equal(t, "hello", procs[0].Child("documentation").Text)

	_, ok := procs[1].LookupAttr("versionTag")
	assert.False(t, ok)
	assert.Nil(t, root.Path("process", "missing"))
	assert.Equal(t, "start", root.Path("process", "startEvent").Attr("id"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"unclosed", "<a><b></a>"},
		{"two roots", "<a/><b/>"},
		{"text only", "hello"},
		{"too deep", strings.Repeat("<a>", MaxDepth+1) + strings.Repeat("</a>", MaxDepth+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWalkAndValue(t *testing.T) {
	root, err := Parse([]byte(`<Task><status value="draft"/><input><type/></input><input/></Task>`))
	require.NoError(t, err)
	assert.Equal(t, "draft", root.Value("status"))
	assert.Empty(t, root.Value("intent"))

	var names []string
	root.Walk(func(e *Element) bool {
		names = append(names, e.Name)
		return e.Name != "input"
	})
	assert.Equal(t, []string{"Task", "status", "input", "input"}, names)
}

func TestParse_DeepIndentedText(t *testing.T) {
	doc := `<Task>
  <input>
    <type>
      <coding>
        <code>message-name</code>
        text after child
      </coding>
      tail
    </type>
    <valueString>ping</valueString>
  </input>
  root text
</Task>`

	root, err := Parse([]byte(doc))
	require.NoError(t, err)

	coding := root.Path("input", "type", "coding")
	require.NotNil(t, coding)
	assert.Equal(t, "message-name", coding.Child("code").Text)
	assert.Equal(t, "text after child", coding.Text)
	assert.Equal(t, "tail", root.Path("input", "type").Text)
	assert.Equal(t, "ping", root.Path("input", "valueString").Text)
	assert.Equal(t, "root text", root.Text)
}
