package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rankboard/internal/feed"
	"rankboard/internal/format"
	"rankboard/internal/model"
	"rankboard/internal/objapi"
)

func newEventsCmd(app *App) *cobra.Command {
	var (
		limit  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent invalidation events, or follow a server's live feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return followEvents(cmd, app)
			}
			if app.Config.Server != "" {
				return writeErr(cmd, errNeedsLocalStore)
			}
			ctx := cmdContext(cmd)
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			evs, err := st.Events(ctx, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeEnvelope(cmd, app, eventList(evs), map[string]any{"count": len(evs)})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max events to show (most recent)")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream events from --server until interrupted")
	return cmd
}

// followEvents prints one JSON line per feed event.
func followEvents(cmd *cobra.Command, app *App) error {
	if app.Config.Server == "" {
		return writeErr(cmd, errors.New("--follow needs --server"))
	}
	log, err := app.logger()
	if err != nil {
		return writeErr(cmd, err)
	}
	c, err := objapi.New(app.Config.Server)
	if err != nil {
		return writeErr(cmd, err)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	sub := feed.NewSubscriber(c.FeedURL(), func(ctx context.Context, ev model.Event) {
		if err := format.WriteJSON(out, ev, false); err != nil {
			log.Warn("write event", zap.Error(err))
		}
	}, feed.WithLogger(log.Named("feed")))

	if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return writeErr(cmd, err)
	}
	return nil
}
