package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var errorAggregationLog = logger.New("cli:error_aggregation")

// ErrorCollector gathers per-bundle failures so one run reports all of them.
// In fail-fast mode Add hands the first error straight back.
type ErrorCollector struct {
	errors   []error
	failFast bool
}

// NewErrorCollector creates a collector.
func NewErrorCollector(failFast bool) *ErrorCollector {
	errorAggregationLog.Printf("Creating error collector: fail_fast=%v", failFast)
	return &ErrorCollector{failFast: failFast}
}

// Add records err. It returns err only in fail-fast mode, nil otherwise.
func (c *ErrorCollector) Add(err error) error {
	if err == nil {
		return nil
	}
	errorAggregationLog.Printf("Adding error to collector: %v", err)
	c.errors = append(c.errors, err)
	if c.failFast {
		return err
	}
	return nil
}

// HasErrors reports whether anything was collected.
func (c *ErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Count returns the number of collected errors.
func (c *ErrorCollector) Count() int {
	return len(c.errors)
}

// Error joins the collected errors, nil when there are none.
func (c *ErrorCollector) Error() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	}
	return errors.Join(c.errors...)
}

// FormattedError is Error with a count header and one bullet per error. The
// result still matches every collected error with errors.Is.
func (c *ErrorCollector) FormattedError(category string) error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	}

	errorAggregationLog.Printf("Formatting %d errors for category: %s", len(c.errors), category)

	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d %s errors:", len(c.errors), category)
	for _, err := range c.errors {
		sb.WriteString("\n  • ")
		sb.WriteString(err.Error())
	}
	return &aggregatedError{msg: sb.String(), errs: c.errors}
}

type aggregatedError struct {
	msg  string
	errs []error
}

func (e *aggregatedError) Error() string   { return e.msg }
func (e *aggregatedError) Unwrap() []error { return e.errs }
