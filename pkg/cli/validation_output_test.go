//go:build !integration

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bpe-tools/pluginlint/pkg/bundle"
	"github.com/bpe-tools/pluginlint/pkg/config"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/discovery"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectEmpty bool
		mustContain []string
	}{
		{name: "nil error returns empty string", expectEmpty: true},
		{
			name:        "simple single-line error",
			err:         errors.New("bundle could not be opened"),
			mustContain: []string{"bundle could not be opened"},
		},
		{
			name:        "validation error with suggestion",
			err:         config.NewValidationError("workers", "0", "value out of range", "Use a value between 1 and 256"),
			mustContain: []string{"invalid workers", "value out of range", "Use a value between 1 and 256"},
		},
		{
			name:        "multi-line error",
			err:         errors.New("found 2 bundle errors:\n  • a: unreadable\n  • b: unreadable"),
			mustContain: []string{"found 2 bundle errors", "a: unreadable", "b: unreadable"},
		},
		{
			name:        "error with formatting characters",
			err:         fmt.Errorf("path must be relative, got: %s", "/absolute/path"),
			mustContain: []string{"path must be relative, got: /absolute/path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatValidationError(tt.err)
			if tt.expectEmpty {
				assert.Empty(t, result)
				return
			}
			for _, expected := range tt.mustContain {
				assert.Contains(t, result, expected)
			}
			assert.NotEqual(t, tt.err.Error(), result, "formatting adds the error prefix")
		})
	}
}

func TestFormatValidationError_PreservesLines(t *testing.T) {
	err := errors.New("first line\nsecond line\nthird line")
	result := FormatValidationError(err)

	assert.Equal(t, 3, strings.Count(result, "\n")+1)
	for line := range strings.SplitSeq(err.Error(), "\n") {
		assert.Contains(t, result, line)
	}
}

func TestPrintValidationError(t *testing.T) {
	require.NotPanics(t, func() {
		PrintValidationError(nil)
		PrintValidationError(errors.New("test error"))
	})
}

func sampleReport() *bundle.Report {
	loc := finding.Location{ProcessID: "dsfdev_ping", ElementID: "send", File: "ping.jar!/bpe/ping.bpmn"}
	return &bundle.Report{
		Dir: "plugins/ping",
		Descriptors: []*discovery.PluginDescriptor{{
			ClassName:  "org.example.PingProcessPluginDefinition",
			Generation: constants.GenerationV2,
			Name:       "ping",
			Version:    "2.0.0.1",
		}},
		Findings: []finding.Finding{
			finding.Successf(finding.CategoryValidated, loc, "send task send is valid"),
			finding.Errorf(finding.CategoryMessageAuthorization, loc, "message \"pong\" is not authorized"),
		},
	}
}

func TestRenderReport(t *testing.T) {
	var hidden, shown bytes.Buffer
	renderReport(&hidden, sampleReport(), false)
	renderReport(&shown, sampleReport(), true)

	for _, out := range []string{hidden.String(), shown.String()} {
		assert.Contains(t, out, "plugins/ping: ping 2.0.0.1 (v2, org.example.PingProcessPluginDefinition)")
		assert.Contains(t, out, "message-authorization")
		assert.Contains(t, out, "ping.jar!/bpe/ping.bpmn dsfdev_ping send")
	}
	assert.NotContains(t, hidden.String(), "send task send is valid")
	assert.Contains(t, shown.String(), "send task send is valid")
}

func TestRenderReport_CleanAndFailed(t *testing.T) {
	var clean bytes.Buffer
	r := sampleReport()
	r.Findings = r.Findings[:1]
	renderReport(&clean, r, false)
	assert.Contains(t, clean.String(), "no problems found")

	var failed bytes.Buffer
	renderReport(&failed, &bundle.Report{Dir: "gone", Err: bundle.ErrUnreadableBundle}, false)
	assert.Contains(t, failed.String(), "gone: "+bundle.ErrUnreadableBundle.Error())
}

func TestRenderSummary(t *testing.T) {
	var out bytes.Buffer
	renderSummary(&out, []*bundle.Report{
		sampleReport(),
		{Dir: "gone", Err: bundle.ErrUnreadableBundle},
	})

	s := out.String()
	assert.Contains(t, s, "Summary")
	assert.Contains(t, s, "plugins/ping")
	assert.Contains(t, s, "failed")
	assert.Contains(t, s, "TOTAL")
}

func TestWriteJSON_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeJSON(&out, nil))
	assert.Equal(t, "[]\n", out.String())
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 bundle", pluralize(1, "bundle"))
	assert.Equal(t, "0 bundles", pluralize(0, "bundle"))
	assert.Equal(t, "3 findings", pluralize(3, "finding"))
}
