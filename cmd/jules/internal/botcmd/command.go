// Package botcmd implements the "bot" command: the long-running Telegram
// front-end with its background activity poller.
package botcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/juleshq/jules/cmd/jules/internal"
	"github.com/juleshq/jules/pkg/channels"
	"github.com/juleshq/jules/pkg/logger"
	"github.com/juleshq/jules/pkg/poller"
)

// NewBotCommand builds the "bot" command group.
func NewBotCommand(apiKey *string) *cobra.Command {
	var app *internal.App

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
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

	cmd.AddCommand(newStartCommand(get, apiKey))

	return cmd
}

func newStartCommand(app func() *internal.App, apiKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot and the activity poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()

			if a.Cfg.Telegram.Token == "" {
				return fmt.Errorf("telegram token not configured (set JULES_TELEGRAM_TOKEN or telegram.token in %s)", a.Paths.ConfigPath)
			}

			channel, err := channels.NewTelegramChannel(
				a.Cfg.Telegram,
				a.Client,
				a.APIKey(*apiKey),
				a.Aliases,
				a.Paths.OwnerChatPath,
			)
			if err != nil {
				return err
			}

			interval := time.Duration(a.Cfg.Poll.IntervalSeconds) * time.Second
			poll := poller.NewService(a.Client, a.Cache, interval, channel.Notify)
			channel.SetPoller(poll)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				logger.InfoCF("bot", "Received signal, shutting down", map[string]any{
					"signal": sig.String(),
				})
				cancel()
			}()

			logger.InfoCF("bot", "Starting bot", map[string]any{
				"poll_interval": interval.String(),
			})

			if err := channel.Start(ctx); err != nil {
				return fmt.Errorf("bot stopped: %w", err)
			}

			logger.InfoC("bot", "Bot stopped")
			return nil
		},
	}
}
