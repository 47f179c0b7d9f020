// Package hierarchy answers parent/child questions over a flat parent-pointer
// index: whether a class may sit under another class, and whether one item is
// an ancestor of another. Every walk is iterative and bounded by data depth.
package hierarchy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"rankboard/internal/model"
)

var (
	ErrSelfDrop   = errors.New("item cannot be its own parent")
	ErrCycle      = errors.New("target is a descendant of the item")
	ErrNotAllowed = errors.New("class pair not allowed by hierarchy")
	ErrNotFound   = errors.New("item not found")
)

// ViolationError describes a rejected parent assignment.
type ViolationError struct {
	Err         error
	ItemID      string
	ParentID    string
	ChildClass  string
	ParentClass string
}

func (e *ViolationError) Error() string {
	parent := e.ParentID
	if parent == "" {
		parent = "(top level)"
	}
	return fmt.Sprintf("%s -> %s: %v", e.ItemID, parent, e.Err)
}

func (e *ViolationError) Unwrap() error { return e.Err }

// CanBeChildOf reports whether childClass may have a parent of parentClass.
// parentClass "" asks whether childClass may be top-level.
func CanBeChildOf(childClass, parentClass string, spec model.HierarchySpec) bool {
	return spec.Allows(strings.TrimSpace(childClass), strings.TrimSpace(parentClass))
}

// Index is a flat id -> item lookup plus a derived children index.
type Index struct {
	byID     map[string]model.Item
	children map[string][]string
}

func NewIndex(items []model.Item) *Index {
	idx := &Index{
		byID:     make(map[string]model.Item, len(items)),
		children: map[string][]string{},
	}
	for _, it := range items {
		idx.byID[it.ID] = it
	}
	for _, it := range items {
		if it.ParentID == "" {
			continue
		}
		idx.children[it.ParentID] = append(idx.children[it.ParentID], it.ID)
	}
	for _, ids := range idx.children {
		sort.Strings(ids)
	}
	return idx
}

func (idx *Index) Get(id string) (model.Item, bool) {
	if idx == nil {
		return model.Item{}, false
	}
	it, ok := idx.byID[id]
	return it, ok
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byID)
}

// Parent returns the item's parent when it is present in the index.
// A dangling parent reference reads as top-level.
func (idx *Index) Parent(id string) (model.Item, bool) {
	it, ok := idx.Get(id)
	if !ok || it.ParentID == "" {
		return model.Item{}, false
	}
	return idx.Get(it.ParentID)
}

// EffectiveParentID is ParentID with dangling references mapped to "".
func (idx *Index) EffectiveParentID(id string) string {
	p, ok := idx.Parent(id)
	if !ok {
		return ""
	}
	return p.ID
}

func (idx *Index) Children(id string) []string {
	if idx == nil {
		return nil
	}
	return idx.children[id]
}

// IsAncestor reports whether candidateID appears on the parent chain above
// itemID. An item is not its own ancestor. Missing parents end the chain.
func IsAncestor(candidateID, itemID string, idx *Index) bool {
	if candidateID == "" || itemID == "" {
		return false
	}
	seen := map[string]bool{itemID: true}
	cur, ok := idx.Get(itemID)
	for ok && cur.ParentID != "" {
		if cur.ParentID == candidateID {
			return true
		}
		if seen[cur.ParentID] {
			// Corrupt cyclic data; stop rather than loop.
			return false
		}
		seen[cur.ParentID] = true
		cur, ok = idx.Get(cur.ParentID)
	}
	return false
}

// Descendants returns every transitive child of rootID, breadth first.
func Descendants(idx *Index, rootID string) []string {
	var out []string
	seen := map[string]bool{rootID: true}
	queue := append([]string(nil), idx.Children(rootID)...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		queue = append(queue, idx.Children(id)...)
	}
	return out
}

// Depth counts ancestors present in the index.
func Depth(idx *Index, id string) int {
	d := 0
	seen := map[string]bool{id: true}
	for p, ok := idx.Parent(id); ok; p, ok = idx.Parent(p.ID) {
		if seen[p.ID] {
			break
		}
		seen[p.ID] = true
		d++
	}
	return d
}

// CheckReparent validates moving itemID under newParentID ("" = top level).
func CheckReparent(idx *Index, spec model.HierarchySpec, itemID, newParentID string) error {
	it, ok := idx.Get(itemID)
	if !ok {
		return &ViolationError{Err: ErrNotFound, ItemID: itemID, ParentID: newParentID}
	}
	if newParentID == "" {
		if !CanBeChildOf(it.ClassID, model.RootParent, spec) {
			return &ViolationError{Err: ErrNotAllowed, ItemID: itemID, ChildClass: it.ClassID}
		}
		return nil
	}
	if newParentID == itemID {
		return &ViolationError{Err: ErrSelfDrop, ItemID: itemID, ParentID: newParentID}
	}
	parent, ok := idx.Get(newParentID)
	if !ok {
		return &ViolationError{Err: ErrNotFound, ItemID: itemID, ParentID: newParentID}
	}
	if IsAncestor(itemID, newParentID, idx) {
		return &ViolationError{Err: ErrCycle, ItemID: itemID, ParentID: newParentID}
	}
	if !CanBeChildOf(it.ClassID, parent.ClassID, spec) {
		return &ViolationError{Err: ErrNotAllowed, ItemID: itemID, ParentID: newParentID, ChildClass: it.ClassID, ParentClass: parent.ClassID}
	}
	return nil
}
