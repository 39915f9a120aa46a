//go:build !integration

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "microseconds", duration: 250 * time.Microsecond, expected: "250µs"},
		{name: "milliseconds", duration: 42 * time.Millisecond, expected: "42ms"},
		{name: "seconds", duration: 1500 * time.Millisecond, expected: "1.5s"},
		{name: "minutes", duration: 90 * time.Second, expected: "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration), "formatted duration should match")
		})
	}
}
