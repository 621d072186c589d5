package sessionscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/resolve"
)

func newGetCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session|@alias|index>",
		Short: "Get a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			session, err := a.Client.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Session:")
			fmt.Fprintf(cmd.OutOrStdout(), "- %s: %s (%s)\n", session.ID, session.Name, session.State)
			if session.PullRequestURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  PR: %s\n", session.PullRequestURL)
			}
			return nil
		},
	}
}

func newDeleteCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session|@alias|index>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			switch err := a.Client.DeleteSession(cmd.Context(), sessionID); {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", sessionID)
			case api.IsNotFound(err):
				// The server already forgot this session; clean up the
				// local state anyway.
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s no longer exists on the server, removing it locally.\n", sessionID)
			default:
				return err
			}

			if err := a.Sessions.Remove(sessionID); err != nil {
				return localStateWarning(cmd, err)
			}
			if _, err := a.Aliases.RemoveBySession(sessionID); err != nil {
				return localStateWarning(cmd, err)
			}
			if err := a.Cache.Delete(sessionID); err != nil {
				return localStateWarning(cmd, err)
			}
			return nil
		},
	}
}

func localStateWarning(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Your local state may be out of sync with the server.")
	return fmt.Errorf("error updating local state: %w", err)
}

func newApprovePlanCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-plan <session|@alias|index>",
		Short: "Approve the plan for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			if err := a.Client.ApprovePlan(cmd.Context(), sessionID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan approved for session %s.\n", sessionID)
			return nil
		},
	}
}

func newSendCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <session|@alias|index> <prompt>",
		Short: "Send a message to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			if err := a.Client.SendMessage(cmd.Context(), sessionID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message sent to session %s.\n", sessionID)
			return nil
		},
	}
}
