package commands

import (
	"github.com/spf13/cobra"

	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	env       string
	logFormat string
}

func (o *rootOptions) logger(cmd *cobra.Command) *logger.Logger {
	return logger.NewWithFormat(o.env, o.logFormat, cmd.ErrOrStderr())
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "tallymigrate",
		Short:   "Migrate Tally exports into the ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.env, "env", "development", "environment (development logs as text)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format override: json or text")

	rootCmd.AddCommand(
		newProcessCommand(opts),
		newExportCommand(),
		newRunCommand(opts),
		newTokenCommand(),
	)

	return rootCmd
}
