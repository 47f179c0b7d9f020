package mutate

import (
	"context"

	"rankboard/internal/dnd"
	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

type DeltaKind string

const (
	DeltaMove     DeltaKind = "move"
	DeltaReparent DeltaKind = "reparent"
	DeltaOptions  DeltaKind = "options"
)

// Delta is a resolved change: exactly one remote call plus the speculative
// write that mirrors it.
type Delta struct {
	Kind   DeltaKind
	ItemID string

	Move   MoveRequest  // DeltaMove
	Update ObjectUpdate // DeltaReparent

	ClassID string // DeltaOptions
	FieldID string
	Order   []string

	Rebalanced bool
}

func (d Delta) apply(board *model.Board, items []model.Item) error {
	switch d.Kind {
	case DeltaMove:
		return ApplyMove(items, d.Move)
	case DeltaReparent:
		return ApplyUpdate(*board, items, d.ItemID, d.Update)
	case DeltaOptions:
		return ApplyOptionOrder(board, d.FieldID, d.Order)
	}
	return nil
}

func (d Delta) call(ctx context.Context, api API) error {
	switch d.Kind {
	case DeltaMove:
		return api.MoveObject(ctx, d.Move)
	case DeltaReparent:
		return api.UpdateObject(ctx, d.ItemID, d.Update)
	case DeltaOptions:
		return api.ReorderOptions(ctx, d.ClassID, d.FieldID, d.Order)
	}
	return nil
}

// Resolve turns a drop classification into a Delta against the current
// collection. Anything refused locally comes back as ErrNoop.
func Resolve(board model.Board, items []model.Item, cls dnd.Classification, draggedID string) (Delta, error) {
	idx := hierarchy.NewIndex(items)
	dragged, ok := idx.Get(draggedID)
	if !ok {
		return Delta{}, noop(NotFoundError{Kind: "item", ID: draggedID})
	}
	switch cls.Kind {
	case dnd.ReparentOnto:
		return resolveReparent(board, idx, dragged, cls.TargetID)
	case dnd.ReorderBetween:
		if cls.ParentID != model.RootParent {
			return resolveNested(board, idx, dragged, cls.ParentID, cls.Index)
		}
		return resolveTopLevel(board, items, idx, dragged, cls.Index, cls.Group)
	default:
		return Delta{}, noop(nil)
	}
}

func resolveReparent(board model.Board, idx *hierarchy.Index, dragged model.Item, targetID string) (Delta, error) {
	if idx.EffectiveParentID(dragged.ID) == targetID {
		return Delta{}, noop(nil)
	}
	if err := hierarchy.CheckReparent(idx, board.Hierarchy, dragged.ID, targetID); err != nil {
		return Delta{}, noop(err)
	}
	r := rank.After(childrenOf(idx, targetID, dragged.ID))
	return Delta{
		Kind:   DeltaReparent,
		ItemID: dragged.ID,
		Update: ObjectUpdate{Parent: ptr(targetID), Rank: ptr(r)},
	}, nil
}

func resolveNested(board model.Board, idx *hierarchy.Index, dragged model.Item, parentID string, index int) (Delta, error) {
	same := idx.EffectiveParentID(dragged.ID) == parentID
	if !same {
		if err := hierarchy.CheckReparent(idx, board.Hierarchy, dragged.ID, parentID); err != nil {
			return Delta{}, noop(err)
		}
	}
	plan, err := rank.PlanMove(childrenOf(idx, parentID, ""), dragged.ID, index)
	if err != nil {
		return Delta{}, err
	}
	if same && plan.Noop {
		return Delta{}, noop(nil)
	}
	others := siblingRanks(plan, dragged.ID)
	if same {
		return Delta{
			Kind:   DeltaMove,
			ItemID: dragged.ID,
			Move: MoveRequest{
				ItemID:       dragged.ID,
				Rank:         ptr(plan.Rank),
				ScopeParent:  parentID,
				SiblingRanks: others,
			},
			Rebalanced: plan.Rebalanced,
		}, nil
	}
	return Delta{
		Kind:       DeltaReparent,
		ItemID:     dragged.ID,
		Update:     ObjectUpdate{Parent: ptr(parentID), Rank: ptr(plan.Rank), SiblingRanks: others},
		Rebalanced: plan.Rebalanced,
	}, nil
}

// resolveTopLevel handles drops into a bucket. A child dropped here is
// promoted and regrouped by the same MoveObject call.
func resolveTopLevel(board model.Board, items []model.Item, idx *hierarchy.Index, dragged model.Item, index int, group *dnd.Group) (Delta, error) {
	if err := hierarchy.CheckReparent(idx, board.Hierarchy, dragged.ID, model.RootParent); err != nil {
		return Delta{}, noop(err)
	}
	promote := dragged.ParentID != model.RootParent

	var sibs []model.Item
	for _, it := range dnd.Roots(items) {
		if group == nil || inGroup(board, it, *group) {
			sibs = append(sibs, it)
		}
	}
	plan, err := rank.PlanMove(sibs, dragged.ID, index)
	if err != nil {
		return Delta{}, err
	}

	req := MoveRequest{
		ItemID:       dragged.ID,
		Rank:         ptr(plan.Rank),
		Promote:      promote,
		SiblingRanks: siblingRanks(plan, dragged.ID),
	}
	regroup := false
	if group != nil && board.ColumnField != "" {
		req.Field = board.ColumnField
		req.Value = group.Column
		regroup = dragged.Value(board.ColumnField) != group.Column
	}
	if group != nil && board.RowField != "" {
		req.RowField = board.RowField
		req.RowValue = ptr(group.Row)
		regroup = regroup || dragged.Value(board.RowField) != group.Row
	}
	if !promote && !regroup && plan.Noop {
		return Delta{}, noop(nil)
	}
	return Delta{Kind: DeltaMove, ItemID: dragged.ID, Move: req, Rebalanced: plan.Rebalanced}, nil
}

func inGroup(board model.Board, it model.Item, g dnd.Group) bool {
	return statusutil.Bucket(board, board.ColumnField, it) == g.Column &&
		statusutil.Bucket(board, board.RowField, it) == g.Row
}

// childrenOf returns the present children of parentID, minus skipID.
// parentID "" is not a valid argument; top-level groups go through dnd.Roots.
func childrenOf(idx *hierarchy.Index, parentID, skipID string) []model.Item {
	var out []model.Item
	for _, id := range idx.Children(parentID) {
		if id == skipID {
			continue
		}
		if it, ok := idx.Get(id); ok {
			out = append(out, it)
		}
	}
	return out
}

func siblingRanks(p rank.Plan, movedID string) map[string]int64 {
	if len(p.Ranks) <= 1 {
		return nil
	}
	out := make(map[string]int64, len(p.Ranks)-1)
	for id, r := range p.Ranks {
		if id != movedID {
			out[id] = r
		}
	}
	return out
}
