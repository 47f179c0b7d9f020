package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rankboard/internal/config"
	"rankboard/internal/feed"
	"rankboard/internal/metrics"
	"rankboard/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the object API, the invalidation feed and metrics over HTTP",
		PreRun: func(cmd *cobra.Command, args []string) {
			app.verboseLogs = true
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.Server != "" {
				return writeErr(cmd, errNeedsLocalStore)
			}
			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := app.logger()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			m := metrics.New()
			hub := feed.NewHub(feed.WithHubLogger(log.Named("feed")), feed.WithMetrics(m))
			defer hub.Close()
			st.SetPublisher(hub)

			srv, err := web.NewServer(web.ServerConfig{Addr: app.Config.Listen}, st,
				web.WithLogger(log.Named("web")),
				web.WithMetrics(m),
				web.WithFeed(hub),
			)
			if err != nil {
				return writeErr(cmd, err)
			}
			log.Info("store ready", zap.String("dir", st.Dir))

			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().String("listen", config.DefaultListen, "Address to listen on")
	return cmd
}
