package sessionscmd

import (
	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
)

// NewSessionsCommand builds the "sessions" command group.
func NewSessionsCommand(apiKey *string) *cobra.Command {
	var app *internal.App

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
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

	get := func() *internal.App { return app }

	cmd.AddCommand(
		newListCommand(get),
		newListCachedCommand(get),
		newCreateCommand(get),
		newGetCommand(get),
		newDeleteCommand(get),
		newApprovePlanCommand(get),
		newSendCommand(get),
		newAliasCommand(get),
	)

	return cmd
}
