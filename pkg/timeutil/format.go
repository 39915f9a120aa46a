// Package timeutil formats durations for debug output.
package timeutil

import (
	"fmt"
	"time"
)

// FormatDuration renders d in the compact style of the npm debug package:
// microseconds and milliseconds below one second, otherwise seconds or minutes.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
