package model

import (
	"sort"
	"strings"
	"time"
)

// RootParent is the HierarchySpec sentinel meaning "may be top-level".
const RootParent = ""

type Class struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"` // field id used as the display title
}

type Option struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Colour string `json:"colour,omitempty"`
	Rank   int64  `json:"rank"`
}

// HierarchySpec maps a class id to the set of classes it may be a child of.
// RootParent in the set allows the class at top level.
type HierarchySpec map[string][]string

// Allows reports whether parentClass (RootParent for none) is listed for childClass.
func (h HierarchySpec) Allows(childClass, parentClass string) bool {
	for _, p := range h[childClass] {
		if p == parentClass {
			return true
		}
	}
	return false
}

func (h HierarchySpec) Clone() HierarchySpec {
	if h == nil {
		return nil
	}
	out := make(HierarchySpec, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Board is the schema of one collection: classes, hierarchy and the option
// lists of its grouping fields.
type Board struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Classes     []Class             `json:"classes"`
	Hierarchy   HierarchySpec       `json:"hierarchy"`
	Options     map[string][]Option `json:"options,omitempty"` // field id -> options
	ColumnField string              `json:"columnField,omitempty"`
	RowField    string              `json:"rowField,omitempty"`
}

func (b Board) FindClass(id string) (Class, bool) {
	id = strings.TrimSpace(id)
	for _, c := range b.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return Class{}, false
}

// Clone returns a deep copy; cached boards are restored from clones on rollback.
func (b Board) Clone() Board {
	out := b
	out.Classes = append([]Class(nil), b.Classes...)
	out.Hierarchy = b.Hierarchy.Clone()
	if b.Options != nil {
		out.Options = make(map[string][]Option, len(b.Options))
		for k, v := range b.Options {
			out.Options[k] = append([]Option(nil), v...)
		}
	}
	return out
}

type Item struct {
	ID       string            `json:"id"`
	ClassID  string            `json:"class"`
	ParentID string            `json:"parent,omitempty"`
	Rank     int64             `json:"rank"`
	Title    string            `json:"title,omitempty"`
	Values   map[string]string `json:"values,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (it Item) Value(field string) string {
	if it.Values == nil {
		return ""
	}
	return it.Values[field]
}

func (it Item) Clone() Item {
	out := it
	if it.Values != nil {
		out.Values = make(map[string]string, len(it.Values))
		for k, v := range it.Values {
			out.Values[k] = v
		}
	}
	return out
}

func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// SortOptions returns options ordered by rank, then id.
func SortOptions(opts []Option) []Option {
	out := append([]Option(nil), opts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Event is an invalidation notice from the real-time feed. Consumers refetch;
// they never apply an event as state.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Board  string    `json:"board"`
	Object string    `json:"object,omitempty"`
	TS     time.Time `json:"ts"`
}

const (
	EventObjectCreate  = "object/create"
	EventObjectUpdate  = "object/update"
	EventObjectDelete  = "object/delete"
	EventValuesUpdate  = "values/update"
	EventOptionReorder = "option/reorder"
	EventHierarchySet  = "hierarchy/set"
	EventBoardUpdate   = "board/update"
)
