package mutate

import (
	"context"
	"strings"

	"rankboard/internal/dnd"
	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

// Explicit (keyboard and CLI) operations. They build the same Classification
// a drag would and go through Resolve, so ranks follow one discipline.

// Scope decides what counts as the top-level sibling group for explicit
// operations. Nested items always group by parent.
type Scope int

const (
	// BoardScope groups top-level items by column and row bucket.
	BoardScope Scope = iota
	// TreeScope treats every top-level item as one group, as the tree view
	// renders them. Moves keep the item's column and row.
	TreeScope
)

func (s Scope) String() string {
	if s == TreeScope {
		return "tree"
	}
	return "board"
}

// Siblings returns the display-ordered board-scope group itemID belongs to.
func Siblings(board model.Board, items []model.Item, itemID string) ([]model.Item, *dnd.Group, error) {
	return SiblingsIn(BoardScope, board, items, itemID)
}

// SiblingsIn returns the display-ordered group itemID belongs to under scope:
// its parent's children, or its top-level group.
func SiblingsIn(scope Scope, board model.Board, items []model.Item, itemID string) ([]model.Item, *dnd.Group, error) {
	idx := hierarchy.NewIndex(items)
	it, ok := idx.Get(itemID)
	if !ok {
		return nil, nil, NotFoundError{Kind: "item", ID: itemID}
	}
	parent := idx.EffectiveParentID(itemID)
	if parent != model.RootParent {
		sibs := childrenOf(idx, parent, "")
		rank.SortByRank(sibs)
		return sibs, nil, nil
	}
	g := scope.group(board, it)
	var sibs []model.Item
	for _, r := range dnd.Roots(items) {
		if g == nil || inGroup(board, r, *g) {
			sibs = append(sibs, r)
		}
	}
	return sibs, g, nil
}

func (s Scope) group(board model.Board, it model.Item) *dnd.Group {
	if s == TreeScope {
		return nil
	}
	return groupOf(board, it)
}

func groupOf(board model.Board, it model.Item) *dnd.Group {
	if board.ColumnField == "" && board.RowField == "" {
		return nil
	}
	return &dnd.Group{
		Column: statusutil.Bucket(board, board.ColumnField, it),
		Row:    statusutil.Bucket(board, board.RowField, it),
	}
}

// Ops runs explicit operations under one Scope.
type Ops struct {
	c     *Coordinator
	scope Scope
}

// In returns the explicit operations for scope.
func (c *Coordinator) In(scope Scope) Ops {
	return Ops{c: c, scope: scope}
}

// MoveToIndex moves itemID to index within its board-scope sibling group.
func (c *Coordinator) MoveToIndex(ctx context.Context, itemID string, index int) (*Mutation, error) {
	return c.In(BoardScope).MoveToIndex(ctx, itemID, index)
}

// MoveBy moves itemID delta positions within its board-scope group.
func (c *Coordinator) MoveBy(ctx context.Context, itemID string, delta int) (*Mutation, error) {
	return c.In(BoardScope).MoveBy(ctx, itemID, delta)
}

func (c *Coordinator) Indent(ctx context.Context, itemID string) (*Mutation, error) {
	return c.In(BoardScope).Indent(ctx, itemID)
}

func (c *Coordinator) Outdent(ctx context.Context, itemID string) (*Mutation, error) {
	return c.In(BoardScope).Outdent(ctx, itemID)
}

func (c *Coordinator) Reparent(ctx context.Context, itemID, parentID string) (*Mutation, error) {
	return c.In(BoardScope).Reparent(ctx, itemID, parentID)
}

// MoveToIndex moves itemID to index within its current sibling group.
func (o Ops) MoveToIndex(ctx context.Context, itemID string, index int) (*Mutation, error) {
	snap := o.c.cache.Snapshot()
	idx := hierarchy.NewIndex(snap.Items)
	it, ok := idx.Get(itemID)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: itemID}
	}
	cls := dnd.Classification{
		Kind:     dnd.ReorderBetween,
		ParentID: idx.EffectiveParentID(itemID),
		Index:    index,
	}
	if cls.ParentID == model.RootParent {
		cls.Group = o.scope.group(snap.Board, it)
	}
	return o.c.Apply(ctx, cls, itemID)
}

// MoveBy moves itemID delta positions within its group (negative is up).
func (o Ops) MoveBy(ctx context.Context, itemID string, delta int) (*Mutation, error) {
	snap := o.c.cache.Snapshot()
	sibs, _, err := SiblingsIn(o.scope, snap.Board, snap.Items, itemID)
	if err != nil {
		return nil, err
	}
	cur := indexOf(sibs, itemID)
	next := cur + delta
	if next < 0 || next >= len(sibs) || delta == 0 {
		return nil, ErrNoop
	}
	return o.MoveToIndex(ctx, itemID, next)
}

// Indent makes itemID the last child of the sibling just above it.
func (o Ops) Indent(ctx context.Context, itemID string) (*Mutation, error) {
	snap := o.c.cache.Snapshot()
	sibs, _, err := SiblingsIn(o.scope, snap.Board, snap.Items, itemID)
	if err != nil {
		return nil, err
	}
	i := indexOf(sibs, itemID)
	if i <= 0 {
		return nil, ErrNoop
	}
	return o.c.Apply(ctx, dnd.Classification{Kind: dnd.ReparentOnto, TargetID: sibs[i-1].ID}, itemID)
}

// Outdent moves itemID up one level, right after its former parent.
func (o Ops) Outdent(ctx context.Context, itemID string) (*Mutation, error) {
	snap := o.c.cache.Snapshot()
	idx := hierarchy.NewIndex(snap.Items)
	parent, ok := idx.Parent(itemID)
	if !ok {
		return nil, ErrNoop
	}
	psibs, g, err := SiblingsIn(o.scope, snap.Board, snap.Items, parent.ID)
	if err != nil {
		return nil, err
	}
	cls := dnd.Classification{
		Kind:     dnd.ReorderBetween,
		ParentID: idx.EffectiveParentID(parent.ID),
		Index:    indexOf(psibs, parent.ID) + 1,
		Group:    g,
	}
	return o.c.Apply(ctx, cls, itemID)
}

// Reparent moves itemID under parentID ("" = top level) as its last child.
func (o Ops) Reparent(ctx context.Context, itemID, parentID string) (*Mutation, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID != model.RootParent {
		return o.c.Apply(ctx, dnd.Classification{Kind: dnd.ReparentOnto, TargetID: parentID}, itemID)
	}
	snap := o.c.cache.Snapshot()
	it, ok := hierarchy.NewIndex(snap.Items).Get(itemID)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: itemID}
	}
	cls := dnd.Classification{Kind: dnd.ReorderBetween, Index: len(snap.Items), Group: o.scope.group(snap.Board, it)}
	return o.c.Apply(ctx, cls, itemID)
}

// ReorderOptions changes the display order of fieldID's options (board
// columns or rows). It never touches item ranks.
func (c *Coordinator) ReorderOptions(ctx context.Context, classID, fieldID string, order []string) (*Mutation, error) {
	board := c.cache.Board()
	cur := model.SortOptions(board.Options[fieldID])
	if len(cur) == 0 {
		return nil, NotFoundError{Kind: "field", ID: fieldID}
	}
	same := len(cur) == len(order)
	for i := 0; same && i < len(cur); i++ {
		same = cur[i].ID == order[i]
	}
	if same {
		return nil, ErrNoop
	}
	trial := board.Clone()
	if err := ApplyOptionOrder(&trial, fieldID, order); err != nil {
		return nil, err
	}
	return c.Submit(ctx, Delta{
		Kind:    DeltaOptions,
		ClassID: classID,
		FieldID: fieldID,
		Order:   append([]string(nil), order...),
	})
}

func indexOf(items []model.Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
