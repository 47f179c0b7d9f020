package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rankboard/internal/dnd"
	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
	"rankboard/internal/rank"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "List, inspect and move items",
	}
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsShowCmd(app))
	cmd.AddCommand(newItemsMoveCmd(app))
	cmd.AddCommand(newItemsReparentCmd(app))
	cmd.AddCommand(newItemsIndentCmd(app, true))
	cmd.AddCommand(newItemsIndentCmd(app, false))
	cmd.AddCommand(newItemsDropCmd(app))
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	var parent, class string
	var top bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in rank order",
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
			idx := hierarchy.NewIndex(items)
			out := make([]model.Item, 0, len(items))
			for _, it := range items {
				if class != "" && it.ClassID != class {
					continue
				}
				p := idx.EffectiveParentID(it.ID)
				if top && p != model.RootParent {
					continue
				}
				if parent != "" && p != parent {
					continue
				}
				out = append(out, it)
			}
			rank.SortByRank(out)
			return writeEnvelope(cmd, app, itemList(out), map[string]any{"count": len(out)})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Only children of this item")
	cmd.Flags().BoolVar(&top, "top", false, "Only top-level items")
	cmd.Flags().StringVar(&class, "class", "", "Only items of this class")
	return cmd
}

func newItemsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item and its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := openSession(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			id := strings.TrimSpace(args[0])
			it, err := s.api.GetObject(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := s.api.ListObjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			idx := hierarchy.NewIndex(items)
			children := []model.Item{}
			for _, cid := range idx.Children(id) {
				if c, ok := idx.Get(cid); ok {
					children = append(children, c)
				}
			}
			rank.SortByRank(children)

			return writeEnvelope(cmd, app, map[string]any{
				"item":     it,
				"depth":    hierarchy.Depth(idx, id),
				"children": children,
			}, map[string]any{"children": len(children)},
				"rankboard items move "+id+" --by -1",
				"rankboard items reparent "+id+" <parent-id>",
			)
		},
	}
}

func newItemsMoveCmd(app *App) *cobra.Command {
	var index, by int

	cmd := &cobra.Command{
		Use:   "move <item-id>",
		Short: "Reorder an item among its siblings",
		Long: strings.TrimSpace(`
Reorder an item within its current sibling group (same parent, and for
top-level items the same column and row). Exactly one of --index or --by is
required.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasIndex, hasBy := cmd.Flags().Changed("index"), cmd.Flags().Changed("by")
			if hasIndex == hasBy {
				return writeErr(cmd, errors.New("exactly one of --index or --by is required"))
			}
			return runMutation(cmd, app, func(co *mutate.Coordinator) (*mutate.Mutation, error) {
				ctx := cmdContext(cmd)
				if hasIndex {
					return co.MoveToIndex(ctx, args[0], index)
				}
				return co.MoveBy(ctx, args[0], by)
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Target index among siblings (0-based)")
	cmd.Flags().IntVar(&by, "by", 0, "Move by this many slots (negative = up)")
	return cmd
}

func newItemsReparentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reparent <item-id> <parent-id|->",
		Short: "Move an item under a new parent as its last child (- for top level)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := strings.TrimSpace(args[1])
			if parent == "-" {
				parent = model.RootParent
			}
			return runMutation(cmd, app, func(co *mutate.Coordinator) (*mutate.Mutation, error) {
				return co.Reparent(cmdContext(cmd), args[0], parent)
			})
		},
	}
}

func newItemsIndentCmd(app *App, indent bool) *cobra.Command {
	use, short := "indent", "Make an item the last child of its previous sibling"
	if !indent {
		use, short = "outdent", "Move an item up one level, right after its parent"
	}
	return &cobra.Command{
		Use:   use + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, app, func(co *mutate.Coordinator) (*mutate.Mutation, error) {
				if indent {
					return co.Indent(cmdContext(cmd), args[0])
				}
				return co.Outdent(cmdContext(cmd), args[0])
			})
		},
	}
}

func newItemsDropCmd(app *App) *cobra.Command {
	var (
		x, y   float64
		view   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "drop <item-id>",
		Short: "Drop an item at a pointer position in the board or tree layout",
		Long: strings.TrimSpace(`
Classify a drop of the item at (--x, --y) using the default layout geometry
and apply it. --view board lays items out in column/row buckets; --view tree
lays them out one row per item. --dry-run only prints the classification.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			s, err := openSession(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			co, err := s.coordinator(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer co.Wait()

			snap := co.Cache().Snapshot()
			var layout *dnd.Layout
			switch view {
			case "board":
				layout = dnd.BoardLayout(snap.Board, snap.Items, dnd.DefaultGeometry)
			case "tree":
				layout = dnd.TreeLayout(snap.Items, nil, dnd.DefaultGeometry)
			default:
				return writeErr(cmd, fmt.Errorf("unknown view: %s (expected board|tree)", view))
			}

			drag, err := co.StartDrag(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cls := drag.Move(dnd.Point{X: x, Y: y}, layout)
			if dryRun {
				drag.Cancel()
				return writeEnvelope(cmd, app, map[string]any{"classification": cls}, map[string]any{"summary": cls.String()})
			}

			m, err := co.Drop(ctx, drag)
			res, err := await(ctx, m, err)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeEnvelope(cmd, app, map[string]any{"classification": cls, "mutation": res}, map[string]any{"summary": cls.String()})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Pointer x")
	cmd.Flags().Float64Var(&y, "y", 0, "Pointer y")
	cmd.Flags().StringVar(&view, "view", "board", "Layout (board|tree)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only classify; do not apply")
	return cmd
}

// runMutation applies one coordinator operation and waits for it to settle.
func runMutation(cmd *cobra.Command, app *App, op func(co *mutate.Coordinator) (*mutate.Mutation, error)) error {
	ctx := cmdContext(cmd)
	s, err := openSession(ctx, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()
	co, err := s.coordinator(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	m, err := op(co)
	res, err := await(ctx, m, err)
	co.Wait()
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeEnvelope(cmd, app, res, nil)
}
