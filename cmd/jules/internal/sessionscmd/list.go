package sessionscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/pkg/render"
)

func newListCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()

			live, err := a.Client.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Jules Sessions")
			if len(live) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}

			cached, err := a.Sessions.Sync(live)
			if err != nil {
				return fmt.Errorf("error updating local state: %w", err)
			}

			// Aliases pointing at sessions that no longer exist are pruned
			// on listing, matching the snapshot reconciliation.
			liveIDs := make(map[string]struct{}, len(live))
			for _, s := range live {
				liveIDs[s.ID] = struct{}{}
			}
			for _, entry := range a.Aliases.List() {
				if _, ok := liveIDs[entry.SessionID]; !ok {
					if err := a.Aliases.Remove(entry.Name); err != nil {
						return fmt.Errorf("error pruning alias %s: %w", entry.Name, err)
					}
				}
			}

			states := make(map[string]string, len(live))
			for _, s := range live {
				states[s.ID] = s.State
			}

			render.Sessions(cmd.OutOrStdout(), cached, states, a.Aliases.BySession())
			return nil
		},
	}
}

// newListCachedCommand prints "index<TAB>title" rows from the snapshot for
// shell completion scripts. Hidden from help output.
func newListCachedCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:    "list-cached",
		Short:  "List cached sessions for shell completion",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for i, session := range app().Sessions.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, session.Title)
			}
			return nil
		},
	}
}
