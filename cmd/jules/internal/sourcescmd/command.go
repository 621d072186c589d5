package sourcescmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
)

// NewSourcesCommand builds the "sources" command group. apiKey points at the
// root command's --api-key flag value.
func NewSourcesCommand(apiKey *string) *cobra.Command {
	var app *internal.App

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			app, err = internal.LoadApp(*apiKey)
			return err
		},
	}

	cmd.AddCommand(
		newListCommand(func() *internal.App { return app }),
		newGetCommand(func() *internal.App { return app }),
	)

	return cmd
}

func newListCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := app().Client.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			for _, source := range sources {
				fmt.Fprintln(cmd.OutOrStdout(), source.Name)
			}
			return nil
		},
	}
}

func newGetCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := app().Client.GetSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Source:")
			fmt.Fprintf(cmd.OutOrStdout(), "- %s: %s\n", source.ID, source.Name)
			return nil
		},
	}
}
