package hierarchy

import (
	"sort"

	"rankboard/internal/model"
)

type ViolationKind string

const (
	KindNotAllowed ViolationKind = "not_allowed"
	KindCycle      ViolationKind = "cycle"
	KindDangling   ViolationKind = "dangling_parent"
)

type Violation struct {
	Kind     ViolationKind `json:"kind"`
	ItemID   string        `json:"itemId"`
	ParentID string        `json:"parentId,omitempty"`
}

// Validate checks every item against the HierarchySpec and for cycles.
// Dangling parents are reported but not treated as cycles.
func Validate(items []model.Item, spec model.HierarchySpec) []Violation {
	idx := NewIndex(items)
	var out []Violation
	for _, it := range items {
		if it.ParentID == "" {
			if !CanBeChildOf(it.ClassID, model.RootParent, spec) {
				out = append(out, Violation{Kind: KindNotAllowed, ItemID: it.ID})
			}
			continue
		}
		parent, ok := idx.Get(it.ParentID)
		if !ok {
			out = append(out, Violation{Kind: KindDangling, ItemID: it.ID, ParentID: it.ParentID})
			continue
		}
		if inCycle(idx, it.ID) {
			out = append(out, Violation{Kind: KindCycle, ItemID: it.ID, ParentID: it.ParentID})
			continue
		}
		if !CanBeChildOf(it.ClassID, parent.ClassID, spec) {
			out = append(out, Violation{Kind: KindNotAllowed, ItemID: it.ID, ParentID: it.ParentID})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// inCycle reports whether walking parents from id comes back to id.
func inCycle(idx *Index, id string) bool {
	seen := map[string]bool{}
	cur, ok := idx.Get(id)
	for ok && cur.ParentID != "" {
		if cur.ParentID == id {
			return true
		}
		if seen[cur.ParentID] {
			return false
		}
		seen[cur.ParentID] = true
		cur, ok = idx.Get(cur.ParentID)
	}
	return false
}
