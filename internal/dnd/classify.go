// Package dnd turns pointer geometry into drop intent. It never mutates
// items; callers feed the classification to the mutation coordinator.
package dnd

import (
	"fmt"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
)

type Kind int

const (
	Invalid Kind = iota
	ReorderBetween
	ReparentOnto
)

func (k Kind) String() string {
	switch k {
	case ReorderBetween:
		return "reorder"
	case ReparentOnto:
		return "reparent"
	default:
		return "invalid"
	}
}

// Group is the column/row bucket a top-level reorder lands in.
type Group struct {
	Column string `json:"column"`
	Row    string `json:"row"`
}

// Classification is the drop intent for one pointer position.
//
// For ReorderBetween, ParentID is the destination parent ("" = top level) and
// Index is the insertion index among the destination siblings with the dragged
// item removed. Group is set only for top-level reorders in a bucketed layout.
// For ReparentOnto, TargetID is the new parent.
type Classification struct {
	Kind     Kind   `json:"kind"`
	ParentID string `json:"parentId,omitempty"`
	Index    int    `json:"index"`
	Group    *Group `json:"group,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

func (c Classification) String() string {
	switch c.Kind {
	case ReparentOnto:
		return fmt.Sprintf("reparent onto %s", c.TargetID)
	case ReorderBetween:
		parent := c.ParentID
		if parent == "" {
			parent = "(top level)"
		}
		if c.Group != nil {
			return fmt.Sprintf("reorder under %s at %d in [%s/%s]", parent, c.Index, c.Group.Column, c.Group.Row)
		}
		return fmt.Sprintf("reorder under %s at %d", parent, c.Index)
	default:
		return "invalid"
	}
}

// Classifier holds the read-only inputs shared by every pointer move of a
// gesture. It is safe to call at pointer-move frequency.
type Classifier struct {
	Spec  model.HierarchySpec
	Index *hierarchy.Index
}

func NewClassifier(spec model.HierarchySpec, items []model.Item) Classifier {
	return Classifier{Spec: spec, Index: hierarchy.NewIndex(items)}
}

// Classify decides what dropping draggedID at p would do.
//
// Checks run in order (centre reparent, nested edge reorder, bucket reorder);
// a failed permission check falls through to the next step rather than
// failing the gesture. Only when every step is refused, or the pointer is
// outside every bucket, is the result Invalid.
func (c Classifier) Classify(p Point, layout *Layout, draggedID string) Classification {
	dragged, ok := c.Index.Get(draggedID)
	if !ok {
		return Classification{Kind: Invalid}
	}

	if hit := layout.HitTest(p); hit != nil {
		band := hit.EdgeBand()
		inCentre := p.Y-hit.Bounds.Y > band && hit.Bounds.Bottom()-p.Y > band

		if inCentre {
			if cls, ok := c.reparent(dragged, hit.ItemID); ok {
				return cls
			}
		} else if hit.Nested() {
			if cls, ok := c.nestedReorder(dragged, hit, p); ok {
				return cls
			}
		}
	}

	return c.bucketReorder(dragged, layout, p)
}

func (c Classifier) reparent(dragged model.Item, targetID string) (Classification, bool) {
	if targetID == dragged.ID {
		return Classification{}, false
	}
	target, ok := c.Index.Get(targetID)
	if !ok {
		return Classification{}, false
	}
	if !hierarchy.CanBeChildOf(dragged.ClassID, target.ClassID, c.Spec) {
		return Classification{}, false
	}
	if hierarchy.IsAncestor(dragged.ID, targetID, c.Index) {
		return Classification{}, false
	}
	return Classification{Kind: ReparentOnto, TargetID: targetID}, true
}

func (c Classifier) nestedReorder(dragged model.Item, hit *Region, p Point) (Classification, bool) {
	parent := hit.Parent
	parentID := parent.ItemID
	if parentID == dragged.ID {
		return Classification{}, false
	}
	// Already a sibling there: no permission question.
	if c.Index.EffectiveParentID(dragged.ID) != parentID {
		pItem, ok := c.Index.Get(parentID)
		if !ok || !hierarchy.CanBeChildOf(dragged.ClassID, pItem.ClassID, c.Spec) {
			return Classification{}, false
		}
		if hierarchy.IsAncestor(dragged.ID, parentID, c.Index) {
			return Classification{}, false
		}
	}
	return Classification{
		Kind:     ReorderBetween,
		ParentID: parentID,
		Index:    siblingIndex(parent.Children, p, dragged.ID),
	}, true
}

func (c Classifier) bucketReorder(dragged model.Item, layout *Layout, p Point) Classification {
	b := layout.BucketAt(p)
	if b == nil {
		return Classification{Kind: Invalid}
	}
	// A child landing here is promoted, which its class has to permit.
	if !hierarchy.CanBeChildOf(dragged.ClassID, model.RootParent, c.Spec) {
		return Classification{Kind: Invalid}
	}
	cls := Classification{
		Kind:     ReorderBetween,
		ParentID: model.RootParent,
		Index:    siblingIndex(b.Cards, p, dragged.ID),
	}
	if layout.Grouped {
		cls.Group = &Group{Column: b.Column, Row: b.Row}
	}
	return cls
}
