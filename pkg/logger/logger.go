// Package logger provides namespaced debug loggers controlled by environment variables.
//
// A logger is enabled when its namespace matches the DEBUG (or PLUGINLINT_DEBUG)
// patterns, using the syntax of the npm debug package:
//
//	DEBUG=*                    - all namespaces
//	DEBUG=classfile:*          - every namespace under classfile
//	DEBUG=discovery:*,bpmn:*   - several namespaces
//	DEBUG=*,-classpath:cache   - everything except one namespace
//
// Output goes to stderr as "namespace message +elapsed". Namespaces are colored
// when stderr is a terminal and DEBUG_COLORS is not "0".
package logger

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bpe-tools/pluginlint/pkg/timeutil"
	"github.com/bpe-tools/pluginlint/pkg/tty"
)

// Logger is a debug logger for a single namespace.
type Logger struct {
	namespace string
	enabled   bool
	color     string

	mu      sync.Mutex
	lastLog time.Time
}

var (
	debugEnv    = debugPatterns()
	debugColors = os.Getenv("DEBUG_COLORS") != "0"
	isTTY       = tty.IsStderrTerminal()

	outputMu sync.Mutex
	output   io.Writer = os.Stderr

	palette = []string{
		"\033[38;5;33m",
		"\033[38;5;35m",
		"\033[38;5;166m",
		"\033[38;5;125m",
		"\033[38;5;37m",
		"\033[38;5;161m",
		"\033[38;5;136m",
		"\033[38;5;63m",
		"\033[38;5;95m",
	}
)

const colorReset = "\033[0m"

func debugPatterns() string {
	if v := os.Getenv("PLUGINLINT_DEBUG"); v != "" {
		return v
	}
	return os.Getenv("DEBUG")
}

// New creates a logger for namespace. Whether it is enabled is decided once, here.
func New(namespace string) *Logger {
	return &Logger{
		namespace: namespace,
		enabled:   computeEnabled(namespace),
		color:     selectColor(namespace),
		lastLog:   time.Now(),
	}
}

// SetOutput redirects all loggers and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	prev := output
	output = w
	return prev
}

// Enabled reports whether l writes anything.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf logs a formatted line followed by the time elapsed since the previous line.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprintf(format, args...))
}

// Print logs its arguments like fmt.Sprint.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprint(args...))
}

func (l *Logger) emit(message string) {
	l.mu.Lock()
	now := time.Now()
	diff := now.Sub(l.lastLog)
	l.lastLog = now
	l.mu.Unlock()

	ns := l.namespace
	if l.color != "" {
		ns = l.color + ns + colorReset
	}

	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintf(output, "%s %s +%s\n", ns, message, timeutil.FormatDuration(diff))
}

func selectColor(namespace string) string {
	if !debugColors || !isTTY {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(namespace))
	return palette[h.Sum32()%uint32(len(palette))]
}

// computeEnabled matches namespace against the comma separated patterns.
// Exclusions win over inclusions regardless of order.
func computeEnabled(namespace string) bool {
	enabled := false
	for pattern := range strings.SplitSeq(debugEnv, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if excluded, ok := strings.CutPrefix(pattern, "-"); ok {
			if matchPattern(namespace, excluded) {
				return false
			}
			continue
		}
		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}
	return enabled
}

func matchPattern(namespace, pattern string) bool {
	if pattern == "*" || pattern == namespace {
		return true
	}
	prefix, suffix, ok := strings.Cut(pattern, "*")
	if !ok {
		return false
	}
	return len(namespace) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(namespace, prefix) &&
		strings.HasSuffix(namespace, suffix)
}
