// Package console formats user facing messages and tables for the terminal.
//
// Styling is applied only when both stdout and stderr are terminals and
// NO_COLOR is unset, so piped or redirected output stays plain.
package console

import (
	"os"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/bpe-tools/pluginlint/pkg/styles"
	"github.com/bpe-tools/pluginlint/pkg/tty"
	"github.com/charmbracelet/lipgloss"
)

var consoleLog = logger.New("console:console")

// isColorEnabled is a variable so tests can force either mode.
var isColorEnabled = func() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return tty.IsStderrTerminal() && tty.IsStdoutTerminal()
}

func applyStyle(style lipgloss.Style, text string) string {
	if !isColorEnabled() {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success message.
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats an error message. Multi-line messages keep their
// structure with continuation lines indented under the first.
func FormatErrorMessage(message string) string {
	lines := strings.Split(message, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = "  " + lines[i]
		}
	}
	return applyStyle(styles.Error, "✗ ") + strings.Join(lines, "\n")
}

// FormatVerboseMessage formats a message shown only with --verbose.
func FormatVerboseMessage(message string) string {
	return applyStyle(styles.Verbose, "  "+message)
}

// FormatSeverity styles a severity label the way its message helper would.
func FormatSeverity(label string) string {
	switch label {
	case "ERROR":
		return applyStyle(styles.Error, label)
	case "WARN":
		return applyStyle(styles.Warning, label)
	case "INFO":
		return applyStyle(styles.Info, label)
	case "SUCCESS":
		return applyStyle(styles.Success, label)
	default:
		consoleLog.Printf("Unstyled severity label: %s", label)
		return label
	}
}
