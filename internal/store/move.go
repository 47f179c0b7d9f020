package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

// MoveObject applies a move in one transaction: grouping values, row value,
// rank, sibling ranks and promotion together. Grouping changes cascade to the
// item's descendants.
func (s *Store) MoveObject(ctx context.Context, req mutate.MoveRequest) error {
	req.ItemID = strings.TrimSpace(req.ItemID)
	return s.write(ctx, "move", func(st *txState) error {
		idx := hierarchy.NewIndex(st.items)
		it, ok := idx.Get(req.ItemID)
		if !ok {
			return mutate.NotFoundError{Kind: "item", ID: req.ItemID}
		}
		if req.Promote {
			if err := hierarchy.CheckReparent(idx, st.board.Hierarchy, it.ID, model.RootParent); err != nil {
				return &ConflictError{Op: "move", ItemID: it.ID, Err: err}
			}
		} else if idx.EffectiveParentID(it.ID) != req.ScopeParent {
			return &ConflictError{Op: "move", ItemID: it.ID, Reason: "item is no longer under " + scopeLabel(req.ScopeParent)}
		}
		if err := checkOption(st.board, req.Field, req.Value); err != nil {
			return err
		}
		if req.RowValue != nil {
			if err := checkOption(st.board, req.RowField, *req.RowValue); err != nil {
				return err
			}
		}
		dest := model.RootParent
		if !req.Promote {
			dest = req.ScopeParent
		}
		for id := range req.SiblingRanks {
			if _, ok := idx.Get(id); !ok || idx.EffectiveParentID(id) != dest {
				return &ConflictError{Op: "move", ItemID: it.ID, Reason: "sibling " + id + " moved"}
			}
		}

		if err := mutate.ApplyMove(st.items, req); err != nil {
			return err
		}
		healTies(st, req.ItemID)

		st.emit(model.EventObjectUpdate, it.ID)
		if req.Field != "" || req.RowValue != nil {
			st.emit(model.EventValuesUpdate, it.ID)
		}
		if req.Promote && it.ParentID != model.RootParent {
			st.emit(model.EventHierarchySet, it.ID)
		}
		return nil
	})
}

// UpdateObject changes an item's parent and/or rank. A new parent is checked
// against the hierarchy and must not be a descendant; the item's subtree
// inherits the new parent's grouping values.
func (s *Store) UpdateObject(ctx context.Context, itemID string, upd mutate.ObjectUpdate) error {
	itemID = strings.TrimSpace(itemID)
	return s.write(ctx, "update", func(st *txState) error {
		idx := hierarchy.NewIndex(st.items)
		it, ok := idx.Get(itemID)
		if !ok {
			return mutate.NotFoundError{Kind: "item", ID: itemID}
		}
		reparent := upd.Parent != nil && strings.TrimSpace(*upd.Parent) != it.ParentID
		dest := idx.EffectiveParentID(itemID)
		if upd.Parent != nil {
			p := strings.TrimSpace(*upd.Parent)
			upd.Parent = &p
			dest = p
		}
		if reparent {
			if err := hierarchy.CheckReparent(idx, st.board.Hierarchy, itemID, dest); err != nil {
				var v *hierarchy.ViolationError
				if errors.As(err, &v) && errors.Is(err, hierarchy.ErrNotFound) && v.ParentID != "" {
					return &ConflictError{Op: "update", ItemID: itemID, Reason: "parent " + v.ParentID + " is gone", Err: err}
				}
				return &ConflictError{Op: "update", ItemID: itemID, Err: err}
			}
		}
		for id := range upd.SiblingRanks {
			if _, ok := idx.Get(id); !ok || idx.EffectiveParentID(id) != dest {
				return &ConflictError{Op: "update", ItemID: itemID, Reason: "sibling " + id + " moved"}
			}
		}

		if err := mutate.ApplyUpdate(st.board, st.items, itemID, upd); err != nil {
			return err
		}
		healTies(st, itemID)

		st.emit(model.EventObjectUpdate, itemID)
		if reparent {
			st.emit(model.EventHierarchySet, itemID)
		}
		return nil
	})
}

// ReorderOptions persists the display order of a grouping field's options.
func (s *Store) ReorderOptions(ctx context.Context, classID, fieldID string, order []string) error {
	classID = strings.TrimSpace(classID)
	fieldID = strings.TrimSpace(fieldID)
	return s.write(ctx, "reorder-options", func(st *txState) error {
		if classID != "" {
			if _, ok := st.board.FindClass(classID); !ok {
				return mutate.NotFoundError{Kind: "class", ID: classID}
			}
		}
		if len(st.board.Options[fieldID]) == 0 {
			return mutate.NotFoundError{Kind: "field", ID: fieldID}
		}
		if err := mutate.ApplyOptionOrder(&st.board, fieldID, order); err != nil {
			return err
		}
		st.boardChanged = true
		st.emit(model.EventOptionReorder, fieldID)
		return nil
	})
}

func checkOption(board model.Board, field, value string) error {
	if field == "" || value == "" || len(board.Options[field]) == 0 {
		return nil
	}
	if !statusutil.ValidateOptionID(board, field, value) {
		return fmt.Errorf("%w: %s=%s", mutate.ErrInvalidOption, field, value)
	}
	return nil
}

func scopeLabel(parent string) string {
	if parent == "" {
		return "the top level"
	}
	return parent
}

// healTies renumbers the moved item's sibling group when a stale client rank
// left it with a tie, so the group keeps a strict order.
func healTies(st *txState, itemID string) {
	var moved model.Item
	for _, it := range st.items {
		if it.ID == itemID {
			moved = it
			break
		}
	}
	group := append(groupOf(st.board, st.items, moved), moved)
	if len(rank.Ties(group)) == 0 {
		return
	}
	ranks := rank.Rebalance(group)
	for i := range st.items {
		if r, ok := ranks[st.items[i].ID]; ok {
			st.items[i].Rank = r
		}
	}
}
