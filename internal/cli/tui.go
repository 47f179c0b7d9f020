package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rankboard/internal/feed"
	"rankboard/internal/mutate"
	"rankboard/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive tree view with keyboard drag and drop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

// runTUI opens the tree view. Against a server it also follows the feed so
// other clients' writes show up.
func runTUI(cmd *cobra.Command, app *App) error {
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	s, err := openSession(ctx, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()

	sink := tui.NewErrorSink()
	co, err := s.coordinator(ctx, mutate.WithNotifier(sink))
	if err != nil {
		return writeErr(cmd, err)
	}
	defer co.Wait()

	eg, egctx := errgroup.WithContext(ctx)
	if s.client != nil {
		c := co.Cache()
		sub := feed.NewSubscriber(s.client.FeedURL(),
			feed.Invalidate(c, s.log.Named("feed")),
			feed.WithLogger(s.log.Named("feed")),
			feed.WithResync(func(ctx context.Context) { _ = c.Refetch(ctx) }),
		)
		eg.Go(func() error { return sub.Run(egctx) })
	}
	eg.Go(func() error {
		// Quitting the view stops the feed.
		defer cancel()
		return tui.Run(egctx, co, sink)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return writeErr(cmd, err)
	}
	return nil
}
