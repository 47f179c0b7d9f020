package store

import (
	"context"
	"sort"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

// GroupKey names one sibling group. Column and Row are set only for
// top-level groups.
type GroupKey struct {
	Parent string `json:"parent,omitempty"`
	Column string `json:"column,omitempty"`
	Row    string `json:"row,omitempty"`
}

type GroupTies struct {
	Group GroupKey   `json:"group"`
	Ties  []rank.Tie `json:"ties"`
}

// Report is the result of a consistency check over the whole collection.
type Report struct {
	Items      int                   `json:"items"`
	Ties       []GroupTies           `json:"ties"`
	Violations []hierarchy.Violation `json:"violations"`
	Fixed      int                   `json:"fixed,omitempty"`
}

func (r Report) OK() bool {
	return len(r.Ties) == 0 && len(r.Violations) == 0
}

// siblingGroups partitions items into sibling groups. Children of a missing
// parent count as top-level.
func siblingGroups(board model.Board, items []model.Item) map[GroupKey][]model.Item {
	idx := hierarchy.NewIndex(items)
	out := map[GroupKey][]model.Item{}
	for _, it := range items {
		k := GroupKey{Parent: idx.EffectiveParentID(it.ID)}
		if k.Parent == model.RootParent {
			k.Column = statusutil.Bucket(board, board.ColumnField, it)
			k.Row = statusutil.Bucket(board, board.RowField, it)
		}
		out[k] = append(out[k], it)
	}
	return out
}

func check(board model.Board, items []model.Item) Report {
	rep := Report{Items: len(items), Ties: []GroupTies{}, Violations: hierarchy.Validate(items, board.Hierarchy)}
	if rep.Violations == nil {
		rep.Violations = []hierarchy.Violation{}
	}
	for k, group := range siblingGroups(board, items) {
		if ties := rank.Ties(group); len(ties) > 0 {
			rep.Ties = append(rep.Ties, GroupTies{Group: k, Ties: ties})
		}
	}
	sort.Slice(rep.Ties, func(i, j int) bool {
		a, b := rep.Ties[i].Group, rep.Ties[j].Group
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Row < b.Row
	})
	return rep
}

// Doctor checks rank order and hierarchy constraints without changing anything.
func (s *Store) Doctor(ctx context.Context) (Report, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return Report{}, err
	}
	items, err := s.ListObjects(ctx)
	if err != nil {
		return Report{}, err
	}
	return check(board, items), nil
}

// Fix renumbers every tied sibling group. Hierarchy violations are reported
// but left alone; they need a human decision.
func (s *Store) Fix(ctx context.Context) (Report, error) {
	var rep Report
	err := s.write(ctx, "doctor-fix", func(st *txState) error {
		rep = check(st.board, st.items)
		groups := siblingGroups(st.board, st.items)
		ranks := map[string]int64{}
		for _, gt := range rep.Ties {
			for id, r := range rank.Rebalance(groups[gt.Group]) {
				ranks[id] = r
			}
		}
		for i := range st.items {
			r, ok := ranks[st.items[i].ID]
			if !ok || st.items[i].Rank == r {
				continue
			}
			st.items[i].Rank = r
			rep.Fixed++
			st.emit(model.EventObjectUpdate, st.items[i].ID)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}
