// Package activitiescmd implements the "activities" command group: fetching
// a session's activity feed into the local cache and inspecting it.
package activitiescmd

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/render"
	"github.com/juleshq/jules/pkg/resolve"
	"github.com/juleshq/jules/pkg/store"
)

// NewActivitiesCommand builds the "activities" command group.
func NewActivitiesCommand(apiKey *string) *cobra.Command {
	var app *internal.App

	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Inspect session activity",
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
		newFetchCommand(get),
		newListCommand(get),
		newGetCommand(get),
	)

	return cmd
}

func newFetchCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <session>",
		Short: "Fetch remote activity into the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			fetched, fresh, err := fetchAndMerge(cmd.Context(), a, sessionID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d activities (%d new) for session %s.\n",
				len(fetched), len(fresh), sessionID)
			return nil
		},
	}
}

func newListCommand(app func() *internal.App) *cobra.Command {
	var (
		limit   int
		refresh bool
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "list <session>",
		Short: "List cached activity for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			if refresh {
				if _, _, err := fetchAndMerge(cmd.Context(), a, sessionID); err != nil {
					return err
				}
			}

			history, err := a.Cache.History(sessionID)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No cached activities for session %s. Run 'jules activities fetch %s' first.\n",
					sessionID, args[0])
				return nil
			}

			if raw {
				if limit > 0 && len(history) > limit {
					history = history[len(history)-limit:]
				}
				out, err := sonic.ConfigDefault.MarshalIndent(history, "", "  ")
				if err != nil {
					return fmt.Errorf("encode activities: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			render.Activities(cmd.OutOrStdout(), history, limit, cachedSession(a, sessionID))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "number", "n", 10, "show the last N activities (0 for all)")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the remote service before listing")
	cmd.Flags().BoolVar(&raw, "raw", false, "print activities as JSON")

	return cmd
}

func newGetCommand(app func() *internal.App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session> <activity-id>",
		Short: "Show a single activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			sessionID, err := resolve.Resolve(args[0], a.Sessions.Listing(), a.Aliases)
			if err != nil {
				return err
			}

			activity, err := a.Client.GetActivity(cmd.Context(), sessionID, args[1])
			if err != nil {
				return fmt.Errorf("error fetching activity: %w", err)
			}

			out, err := sonic.ConfigDefault.MarshalIndent(activity, "", "  ")
			if err != nil {
				return fmt.Errorf("encode activity: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// fetchAndMerge pulls remote activity from the session's stored pagination
// cursor onward and folds it into the cache, returning the fetched batch and
// the records not seen before.
func fetchAndMerge(ctx context.Context, a *internal.App, sessionID string) ([]api.Activity, []api.Activity, error) {
	pageToken, err := a.Cache.PageToken(sessionID)
	if err != nil {
		return nil, nil, err
	}

	fetched, resumeToken, err := a.Client.FetchActivities(ctx, sessionID, pageToken)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching activities: %w", err)
	}

	fresh, err := a.Cache.Merge(sessionID, fetched, resumeToken)
	if err != nil {
		return nil, nil, err
	}
	return fetched, fresh, nil
}

// cachedSession looks sessionID up in the listing snapshot, falling back to a
// bare record so rendering still works for sessions outside the snapshot.
func cachedSession(a *internal.App, sessionID string) store.CachedSession {
	for _, s := range a.Sessions.List() {
		if s.ID == sessionID {
			return s
		}
	}
	return store.CachedSession{ID: sessionID}
}
