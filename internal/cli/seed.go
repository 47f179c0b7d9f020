package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"rankboard/internal/store"
)

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file|->",
		Short: "Replace the local store's board and items with a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.Server != "" {
				return writeErr(cmd, errNeedsLocalStore)
			}
			ctx := cmdContext(cmd)

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				r = f
			}
			sd, err := store.LoadSeed(r)
			if err != nil {
				return writeErr(cmd, err)
			}

			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			if err := st.Seed(ctx, sd); err != nil {
				return writeErr(cmd, err)
			}
			items, err := st.ListObjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			board, err := st.Board(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeEnvelope(cmd, app, board, map[string]any{"dir": st.Dir, "items": len(items)},
				"rankboard board show",
				"rankboard serve",
			)
		},
	}
}
