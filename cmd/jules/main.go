package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/cmd/jules/internal/activitiescmd"
	"github.com/juleshq/jules/cmd/jules/internal/botcmd"
	"github.com/juleshq/jules/cmd/jules/internal/sessionscmd"
	"github.com/juleshq/jules/cmd/jules/internal/sourcescmd"
	"github.com/juleshq/jules/pkg/logger"
)

func newRootCommand() *cobra.Command {
	var (
		apiKey  string
		verbose bool
	)

	root := &cobra.Command{
		Use:           "jules",
		Short:         "Command-line and Telegram client for remote coding sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "API key (overrides config and JULES_API_KEY)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Subcommand groups install their own PersistentPreRunE, so the flag is
	// applied via OnInitialize instead.
	cobra.OnInitialize(func() {
		if verbose && logger.GetLevel() != logger.DEBUG {
			logger.SetLevel(logger.DEBUG)
		}
	})

	root.AddCommand(
		sourcescmd.NewSourcesCommand(&apiKey),
		sessionscmd.NewSessionsCommand(&apiKey),
		activitiescmd.NewActivitiesCommand(&apiKey),
		botcmd.NewBotCommand(&apiKey),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jules %s\n", internal.FormatVersion())
			build, goVer := internal.FormatBuildInfo()
			if build != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  Build: %s\n", build)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Go: %s\n", goVer)
		},
	}
}

func main() {
	err := newRootCommand().Execute()
	logger.DisableFileLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
