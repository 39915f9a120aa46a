package validator

import "strings"

// hasPlaceholder reports whether value contains token literally.
func hasPlaceholder(value, token string) bool {
	return strings.Contains(value, token)
}

// isExpression reports whether value is evaluated by the engine at runtime.
func isExpression(value string) bool {
	return strings.Contains(value, "${")
}

// processName returns the part of a process id after the organization prefix.
func processName(pid string) string {
	if _, name, ok := strings.Cut(pid, "_"); ok {
		return name
	}
	return pid
}
