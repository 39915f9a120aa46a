package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bundle"
	"github.com/bpe-tools/pluginlint/pkg/config"
	"github.com/bpe-tools/pluginlint/pkg/console"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/spf13/cobra"
)

var validateLog = logger.New("cli:validate_command")

// ErrThresholdReached is wrapped by the error returned when a bundle has findings
// at or above the fail-on severity.
var ErrThresholdReached = errors.New("findings at or above fail-on severity")

// ValidateOptions holds the validate command's inputs. Zero values mean "use the
// config file"; the Set fields mark flags given on the command line.
type ValidateOptions struct {
	Dirs        []string
	ConfigPath  string
	JSONOutput  bool
	FailFast    bool
	Verbose     bool
	Workers     int
	WorkersSet  bool
	FailOn      string
	FailOnSet   bool
	ShowSuccess bool
	ShowSet     bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [bundle-dir]...",
		Short: "Statically check process plugin bundles",
		Long: `Validate one or more process plugin bundles without loading any of their code.

A bundle is a directory holding plugin jars, or a build tree with compiled classes
(target/classes) and resources (src/main/resources). Every descriptor registered
under META-INF/services is read, and its process models and resources are checked
for implementation classes, message authorization, field injections, placeholders
and profile cardinality.

If no directory is given the working directory is validated.

Examples:
  ` + constants.CLIName + ` validate                        # Validate the working directory
  ` + constants.CLIName + ` validate plugins/ping plugins/pong
  ` + constants.CLIName + ` validate --json target          # Output reports as JSON
  ` + constants.CLIName + ` validate --fail-on warn .       # Fail on warnings too
  ` + constants.CLIName + ` validate --fail-fast a b c      # Stop at the first failing bundle`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ValidateOptions{Dirs: args}
			opts.ConfigPath, _ = cmd.Flags().GetString("config")
			opts.JSONOutput, _ = cmd.Flags().GetBool("json")
			opts.FailFast, _ = cmd.Flags().GetBool("fail-fast")
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			opts.Workers, _ = cmd.Flags().GetInt("workers")
			opts.WorkersSet = cmd.Flags().Changed("workers")
			opts.FailOn, _ = cmd.Flags().GetString("fail-on")
			opts.FailOnSet = cmd.Flags().Changed("fail-on")
			opts.ShowSuccess, _ = cmd.Flags().GetBool("show-success")
			opts.ShowSet = cmd.Flags().Changed("show-success")

			return RunValidate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringP("config", "c", "", "Config file (default: "+constants.ConfigFileName+" if present)")
	cmd.Flags().BoolP("json", "j", false, "Output results in JSON format")
	cmd.Flags().IntP("workers", "w", 0, "Number of bundles inspected in parallel")
	cmd.Flags().String("fail-on", "", "Lowest severity that fails the run ("+strings.Join(config.FailOnValues, ", ")+")")
	cmd.Flags().Bool("show-success", false, "Also list checks that passed")
	cmd.Flags().Bool("fail-fast", false, "Stop at the first failing bundle instead of inspecting all of them")

	return cmd
}

// RunValidate inspects the bundles and writes the reports to stdout. The returned
// error describes every failing bundle.
func RunValidate(ctx context.Context, opts ValidateOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := resolveSettings(opts)
	if err != nil {
		return err
	}

	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	validateLog.Printf("Running validate command: dirs=%v workers=%d fail_on=%s", dirs, settings.Workers, settings.FailOn)
	if opts.Verbose {
		fmt.Fprintln(stderr, console.FormatVerboseMessage(fmt.Sprintf("Inspecting %s with %s",
			pluralize(len(dirs), "bundle"), pluralize(settings.Workers, "worker"))))
	}

	threshold, failing := settings.Threshold()
	collector := NewErrorCollector(opts.FailFast)
	bundleOpts := settings.BundleOptions()

	var reports []*bundle.Report
	if opts.FailFast {
		for _, dir := range dirs {
			r := bundle.Inspect(dir, bundleOpts)
			reports = append(reports, r)
			if collector.Add(reportError(r, threshold, failing)) != nil {
				break
			}
		}
	} else {
		reports = bundle.InspectAll(ctx, dirs, bundleOpts, settings.Workers)
		for _, r := range reports {
			_ = collector.Add(reportError(r, threshold, failing))
		}
	}

	if opts.JSONOutput {
		if err := writeJSON(stdout, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			renderReport(stdout, r, settings.ShowSuccess)
		}
		renderSummary(stdout, reports)
	}

	return collector.FormattedError("bundle")
}

func resolveSettings(opts ValidateOptions) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.WorkersSet {
		settings.Workers = opts.Workers
	}
	if opts.FailOnSet {
		settings.FailOn = strings.ToLower(strings.TrimSpace(opts.FailOn))
	}
	if opts.ShowSet {
		settings.ShowSuccess = opts.ShowSuccess
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// reportError returns why r fails the run, nil when it passes.
func reportError(r *bundle.Report, threshold finding.Severity, failing bool) error {
	if r.Err != nil {
		return fmt.Errorf("%s: %w", r.Dir, r.Err)
	}
	if !failing || !finding.AtLeast(r.Findings, threshold) {
		return nil
	}
	n := 0
	for _, f := range r.Findings {
		if f.Severity >= threshold {
			n++
		}
	}
	return fmt.Errorf("%s: %s at or above %s: %w", r.Dir, pluralize(n, "finding"),
		strings.ToLower(threshold.String()), ErrThresholdReached)
}
