package dnd

import (
	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

// Geometry holds the pixel metrics used to derive region trees.
type Geometry struct {
	ColumnWidth  float64
	ColumnGap    float64
	HeaderHeight float64
	CardHeight   float64
	ChildHeight  float64
	CardGap      float64
	NestPad      float64

	RowHeight float64
	Indent    float64
	TreeWidth float64
}

var DefaultGeometry = Geometry{
	ColumnWidth:  280,
	ColumnGap:    16,
	HeaderHeight: 40,
	CardHeight:   56,
	ChildHeight:  36,
	CardGap:      8,
	NestPad:      8,

	RowHeight: 32,
	Indent:    20,
	TreeWidth: 640,
}

// sortedChildren returns the present children of id in rank order.
func sortedChildren(idx *hierarchy.Index, id string) []model.Item {
	ids := idx.Children(id)
	out := make([]model.Item, 0, len(ids))
	for _, cid := range ids {
		if it, ok := idx.Get(cid); ok {
			out = append(out, it)
		}
	}
	rank.SortByRank(out)
	return out
}

// Roots returns the items that render at top level: no parent, or a parent
// that is not present. Ordered by rank.
func Roots(items []model.Item) []model.Item {
	idx := hierarchy.NewIndex(items)
	var out []model.Item
	for _, it := range items {
		if idx.EffectiveParentID(it.ID) == "" {
			out = append(out, it)
		}
	}
	rank.SortByRank(out)
	return out
}

// BoardLayout stacks top-level cards into column x row buckets, nesting each
// card's descendants inside it. The empty column/row bucket is present only
// when some card lands there, or when the field defines no options.
func BoardLayout(board model.Board, items []model.Item, g Geometry) *Layout {
	idx := hierarchy.NewIndex(items)
	roots := Roots(items)

	type key struct{ col, row string }
	cells := map[key][]model.Item{}
	emptyCol, emptyRow := false, false
	for _, it := range roots {
		k := key{
			col: statusutil.Bucket(board, board.ColumnField, it),
			row: statusutil.Bucket(board, board.RowField, it),
		}
		emptyCol = emptyCol || k.col == ""
		emptyRow = emptyRow || k.row == ""
		cells[k] = append(cells[k], it)
	}

	cols := statusutil.Buckets(board, board.ColumnField, emptyCol)
	rows := []string{""}
	if board.RowField != "" {
		rows = statusutil.Buckets(board, board.RowField, emptyRow)
	}

	out := &Layout{Grouped: true}
	y := 0.0
	for _, row := range rows {
		var rowBuckets []*Bucket
		content := 0.0
		for ci, col := range cols {
			x := float64(ci) * (g.ColumnWidth + g.ColumnGap)
			b := &Bucket{Column: col, Row: row}
			cursor := y + g.HeaderHeight
			for _, it := range cells[key{col, row}] {
				seen := map[string]bool{}
				r := placeCard(idx, it, nil, x, cursor, g.ColumnWidth, g, seen)
				b.Cards = append(b.Cards, r)
				cursor += r.Bounds.H + g.CardGap
			}
			if h := cursor - y - g.HeaderHeight; h > content {
				content = h
			}
			b.Bounds = Rect{X: x, Y: y, W: g.ColumnWidth}
			rowBuckets = append(rowBuckets, b)
		}
		// Trailing space so dropping after the last card is reachable.
		height := g.HeaderHeight + content + g.CardHeight
		for _, b := range rowBuckets {
			b.Bounds.H = height
		}
		out.Buckets = append(out.Buckets, rowBuckets...)
		y += height + g.ColumnGap
	}
	return out
}

func placeCard(idx *hierarchy.Index, it model.Item, parent *Region, x, y, w float64, g Geometry, seen map[string]bool) *Region {
	seen[it.ID] = true
	r := &Region{ItemID: it.ID, Parent: parent}
	h := g.CardHeight
	if parent != nil {
		h = g.ChildHeight
	}
	cursor := y + h
	for _, ch := range sortedChildren(idx, it.ID) {
		if seen[ch.ID] {
			continue
		}
		c := placeCard(idx, ch, r, x+g.NestPad, cursor, w-2*g.NestPad, g, seen)
		r.Children = append(r.Children, c)
		cursor += c.Bounds.H + g.CardGap
	}
	r.Bounds = Rect{X: x, Y: y, W: w, H: cursor - y}
	return r
}

// TreeRow is one visible line of the indented tree.
type TreeRow struct {
	Item        model.Item
	Depth       int
	HasChildren bool
	Collapsed   bool
}

// FlattenTree walks items depth first in rank order. Children of missing
// parents are promoted to roots; collapsed rows hide their subtree.
func FlattenTree(items []model.Item, collapsed map[string]bool) []TreeRow {
	idx := hierarchy.NewIndex(items)
	var out []TreeRow
	seen := map[string]bool{}
	type frame struct {
		item  model.Item
		depth int
	}
	roots := Roots(items)
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[f.item.ID] {
			continue
		}
		seen[f.item.ID] = true
		kids := sortedChildren(idx, f.item.ID)
		out = append(out, TreeRow{
			Item:        f.item,
			Depth:       f.depth,
			HasChildren: len(kids) > 0,
			Collapsed:   collapsed[f.item.ID],
		})
		if collapsed[f.item.ID] {
			continue
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}
	return out
}

// TreeLayout lays rows out one per line. A child row's region hangs under its
// parent row's region even though their bounds do not overlap, so nested-edge
// rules apply to child rows the same way they apply to nested cards.
func TreeLayout(items []model.Item, collapsed map[string]bool, g Geometry) *Layout {
	rows := FlattenTree(items, collapsed)
	b := &Bucket{}
	byID := map[string]*Region{}
	idx := hierarchy.NewIndex(items)
	for i, row := range rows {
		x := float64(row.Depth) * g.Indent
		r := &Region{
			ItemID: row.Item.ID,
			Bounds: Rect{X: x, Y: float64(i) * g.RowHeight, W: g.TreeWidth - x, H: g.RowHeight},
		}
		if row.Depth > 0 {
			r.Parent = byID[idx.EffectiveParentID(row.Item.ID)]
		}
		if r.Parent != nil {
			r.Parent.Children = append(r.Parent.Children, r)
		} else {
			b.Cards = append(b.Cards, r)
		}
		byID[r.ItemID] = r
	}
	b.Bounds = Rect{W: g.TreeWidth, H: float64(len(rows)+1) * g.RowHeight}
	return &Layout{Buckets: []*Bucket{b}}
}
