package sessionscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/pkg/resolve"
)

// newAliasCommand manages session aliases:
//
//	sessions alias                   list aliases
//	sessions alias @name <token>     bind @name to a session
//	sessions alias @name --delete    remove @name
func newAliasCommand(app func() *internal.App) *cobra.Command {
	var deleteFlag bool

	cmd := &cobra.Command{
		Use:   "alias [@name [session|index]]",
		Short: "Manage session aliases",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			if deleteFlag {
				if len(args) == 0 {
					return fmt.Errorf("alias to delete must be specified")
				}
				if err := a.Aliases.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alias '%s' deleted.\n", args[0])
				return nil
			}

			if len(args) == 2 {
				name, token := args[0], args[1]

				sessionID, index, err := resolve.ResolveIndex(token, a.Sessions.Listing(), a.Aliases)
				if err != nil {
					return err
				}

				if err := a.Aliases.Add(name, sessionID); err != nil {
					return err
				}
				if index > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Alias '%s' created for session %d (%s).\n", name, index, sessionID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Alias '%s' created for session %s.\n", name, sessionID)
				}
				return nil
			}

			if len(args) == 1 {
				return fmt.Errorf("alias needs a session to bind to (or --delete to remove)")
			}

			entries := a.Aliases.List()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No aliases found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Aliases:")
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", entry.Name, entry.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&deleteFlag, "delete", "d", false, "delete the specified alias")

	return cmd
}
