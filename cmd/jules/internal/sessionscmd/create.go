package sessionscmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
)

func newCreateCommand(app func() *internal.App) *cobra.Command {
	var (
		source    string
		branch    string
		noAutoPR  bool
		aliasName string
	)

	cmd := &cobra.Command{
		Use:   "create --source <source> [flags] -- <title>",
		Short: "Create a new session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			title := strings.Join(args, " ")

			session, err := a.Client.CreateSession(cmd.Context(), source, branch, title, !noAutoPR)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Session created:")
			fmt.Fprintf(cmd.OutOrStdout(), "- %s: %s (%s)\n", session.ID, session.Name, session.State)

			if err := a.Sessions.Add(*session); err != nil {
				return fmt.Errorf("error updating local state: %w", err)
			}

			if aliasName != "" {
				if err := a.Aliases.Add(aliasName, session.ID); err != nil {
					return fmt.Errorf("error creating alias: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alias '%s' created for session %s.\n", aliasName, session.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source to use for the session")
	cmd.Flags().StringVarP(&branch, "branch", "b", "main", "branch to use for the session")
	cmd.Flags().BoolVar(&noAutoPR, "no-auto-pr", false, "disable automatically creating a pull request")
	cmd.Flags().StringVarP(&aliasName, "alias", "a", "", "alias to create for the new session")
	cmd.MarkFlagRequired("source")

	return cmd
}
