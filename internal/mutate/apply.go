package mutate

import (
	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
)

// The Apply functions change items in place. They are shared by the
// speculative cache write and the authoritative store so both sides agree on
// what a request means. Hierarchy validation is the caller's job.

// ApplyMove applies req to items.
func ApplyMove(items []model.Item, req MoveRequest) error {
	pos := positions(items)
	i, ok := pos[req.ItemID]
	if !ok {
		return NotFoundError{Kind: "item", ID: req.ItemID}
	}
	it := &items[i]

	changed := map[string]string{}
	if req.Promote {
		it.ParentID = model.RootParent
	}
	if req.Field != "" {
		setValue(it, req.Field, req.Value)
		changed[req.Field] = req.Value
	}
	if req.RowField != "" && req.RowValue != nil {
		setValue(it, req.RowField, *req.RowValue)
		changed[req.RowField] = *req.RowValue
	}
	if req.Rank != nil {
		it.Rank = *req.Rank
	}
	applyRanks(items, pos, req.SiblingRanks)
	Cascade(items, req.ItemID, changed)
	return nil
}

// ApplyUpdate applies upd to itemID. A new parent's column and row values are
// inherited by the item and its subtree.
func ApplyUpdate(board model.Board, items []model.Item, itemID string, upd ObjectUpdate) error {
	pos := positions(items)
	i, ok := pos[itemID]
	if !ok {
		return NotFoundError{Kind: "item", ID: itemID}
	}
	it := &items[i]

	if upd.Parent != nil {
		it.ParentID = *upd.Parent
		if j, ok := pos[*upd.Parent]; ok && *upd.Parent != "" {
			inherited := map[string]string{}
			for _, f := range []string{board.ColumnField, board.RowField} {
				if f == "" {
					continue
				}
				v := items[j].Value(f)
				setValue(it, f, v)
				inherited[f] = v
			}
			Cascade(items, itemID, inherited)
		}
	}
	if upd.Rank != nil {
		it.Rank = *upd.Rank
	}
	applyRanks(items, pos, upd.SiblingRanks)
	return nil
}

// ApplyOptionOrder re-ranks field's options on board in the given order.
func ApplyOptionOrder(board *model.Board, fieldID string, order []string) error {
	opts := board.Options[fieldID]
	if len(opts) != len(order) {
		return ErrInvalidOption
	}
	at := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := at[id]; dup {
			return ErrInvalidOption
		}
		at[id] = i
	}
	next := make([]model.Option, len(opts))
	copy(next, opts)
	for i := range next {
		k, ok := at[next[i].ID]
		if !ok {
			return ErrInvalidOption
		}
		next[i].Rank = rank.Step * int64(k+1)
	}
	if board.Options == nil {
		board.Options = map[string][]model.Option{}
	}
	board.Options[fieldID] = model.SortOptions(next)
	return nil
}

// Cascade copies values onto every transitive descendant of rootID and
// returns the ids it touched.
func Cascade(items []model.Item, rootID string, values map[string]string) []string {
	if len(values) == 0 {
		return nil
	}
	idx := hierarchy.NewIndex(items)
	desc := hierarchy.Descendants(idx, rootID)
	pos := positions(items)
	for _, id := range desc {
		it := &items[pos[id]]
		for f, v := range values {
			setValue(it, f, v)
		}
	}
	return desc
}

func positions(items []model.Item) map[string]int {
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[it.ID] = i
	}
	return pos
}

func applyRanks(items []model.Item, pos map[string]int, ranks map[string]int64) {
	for id, r := range ranks {
		if j, ok := pos[id]; ok {
			items[j].Rank = r
		}
	}
}

func setValue(it *model.Item, field, value string) {
	if value == "" {
		delete(it.Values, field)
		return
	}
	if it.Values == nil {
		it.Values = map[string]string{}
	}
	it.Values[field] = value
}
