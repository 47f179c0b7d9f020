package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"rankboard/internal/model"
	"rankboard/internal/mutate"
)

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Inspect the board schema and its buckets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show top-level items per column and row",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := openSession(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			board, err := s.api.Board(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := s.api.ListObjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			v := newBoardView(board, items)
			return writeEnvelope(cmd, app, v, map[string]any{"buckets": len(v.Buckets), "items": len(items)})
		},
	})
	return cmd
}

func newTreeCmd(app *App) *cobra.Command {
	var collapse []string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show items as an indented tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := openSession(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			items, err := s.api.ListObjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			collapsed := map[string]bool{}
			for _, id := range collapse {
				collapsed[strings.TrimSpace(id)] = true
			}
			v := newTreeView(items, collapsed)
			return writeEnvelope(cmd, app, v, map[string]any{"rows": len(v)})
		},
	}
	cmd.Flags().StringSliceVar(&collapse, "collapse", nil, "Item ids whose subtrees are hidden")
	return cmd
}

func newOptionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Manage field options (board columns and rows)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <field>",
		Short: "List a field's options in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := openSession(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			board, err := s.api.Board(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			opts, ok := board.Options[args[0]]
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "field", ID: args[0]})
			}
			return writeEnvelope(cmd, app, model.SortOptions(opts), nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reorder <class> <field> <option-id>...",
		Short: "Set the display order of a field's options",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, func(co *mutate.Coordinator) (*mutate.Mutation, error) {
				return co.ReorderOptions(cmdContext(cmd), args[0], args[1], args[2:])
			})
		},
	})
	return cmd
}
