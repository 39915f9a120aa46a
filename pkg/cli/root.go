// Package cli implements the pluginlint command line.
package cli

import (
	"fmt"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command with every subcommand attached.
// version is printed by the version command.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   constants.CLIName,
		Short: "Static inspector for process engine plugin bundles",
		Long: constants.CLIName + ` checks process plugin bundles before deployment: descriptors,
process models, implementation classes and resources are read from the jars and
class directories without running any plugin code.

Set DEBUG=* (or DEBUG=classpath:*,validator:*) for internal logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	root.AddCommand(
		NewValidateCommand(),
		NewVersionCommand(version),
	)
	return root
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the " + constants.CLIName + " version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", constants.CLIName, version)
		},
	}
}
