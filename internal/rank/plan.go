package rank

import (
	"errors"
	"strings"

	"rankboard/internal/model"
)

// Plan describes the rank updates needed to place one item at an index of a
// sibling group. Ranks includes only items whose rank changes.
type Plan struct {
	Rank       int64            // the moved item's new rank
	Ranks      map[string]int64 // every rank that changes, moved item included
	WindowIDs  []string         // items re-ranked by the rebalance path, in final order
	Rebalanced bool
	Noop       bool
}

// PlanMove plans ranks for inserting movedID into siblings at insertAt.
//
// siblings is the destination group; it may or may not contain the moved
// item. insertAt counts positions in the group *after removing* the moved item.
//
// Behavior:
//   - Prefer changing only the moved item's rank (midpoint of its neighbours).
//   - When the neighbours leave no room, rebalance the smallest contiguous
//     window around the insertion point whose outer bounds leave enough room.
//     The whole group is the last window tried, and always fits.
//   - A destination group that already contains ties is renumbered whole.
func PlanMove(siblings []model.Item, movedID string, insertAt int) (Plan, error) {
	movedID = strings.TrimSpace(movedID)
	if movedID == "" {
		return Plan{}, errors.New("missing moved id")
	}

	cur := model.CloneItems(siblings)
	SortByRank(cur)

	movedIdx := -1
	var moved model.Item
	rest := make([]model.Item, 0, len(cur))
	for i, it := range cur {
		if it.ID == movedID {
			movedIdx = i
			moved = it
			continue
		}
		rest = append(rest, it)
	}
	if movedIdx < 0 {
		moved = model.Item{ID: movedID}
	}

	if insertAt < 0 {
		insertAt = 0
	}
	if insertAt > len(rest) {
		insertAt = len(rest)
	}
	if movedIdx >= 0 && insertAt == movedIdx {
		return Plan{Rank: moved.Rank, Ranks: map[string]int64{}, Noop: true}, nil
	}
	// When moving up, prefer rebalancing toward the displaced neighbours below.
	preferRight := movedIdx < 0 || insertAt < movedIdx

	final := make([]model.Item, 0, len(rest)+1)
	final = append(final, rest[:insertAt]...)
	final = append(final, moved)
	final = append(final, rest[insertAt:]...)

	// A group that already holds ties is renumbered whole.
	lo, hi := 0, len(final)-1
	if len(Ties(rest)) == 0 {
		r, err := Allocate(rest, insertAt, "")
		if err == nil {
			return Plan{Rank: r, Ranks: map[string]int64{movedID: r}}, nil
		}
		if !errors.Is(err, ErrNoSpace) {
			return Plan{}, err
		}
		lo, hi = minimalWindow(final, insertAt, preferRight)
	}
	lower, upper, open := bounds(final, lo, hi)
	size := int64(hi - lo + 1)
	gap := Step
	if !open {
		gap = floorDiv(upper-lower, size+1)
	}

	p := Plan{
		Ranks:      map[string]int64{},
		WindowIDs:  make([]string, 0, hi-lo+1),
		Rebalanced: true,
	}
	for i := lo; i <= hi; i++ {
		r := lower + gap*int64(i-lo+1)
		id := final[i].ID
		p.WindowIDs = append(p.WindowIDs, id)
		if id == movedID {
			p.Rank = r
			p.Ranks[id] = r
			continue
		}
		if final[i].Rank != r {
			p.Ranks[id] = r
		}
	}
	return p, nil
}

// bounds returns the ranks just outside [lo, hi]. open reports a missing upper bound.
func bounds(final []model.Item, lo, hi int) (lower, upper int64, open bool) {
	if lo > 0 {
		lower = final[lo-1].Rank
	}
	if hi+1 < len(final) {
		return lower, final[hi+1].Rank, false
	}
	return lower, 0, true
}

// minimalWindow finds the smallest window [lo, hi] containing idx whose outer
// bounds leave at least one integer per window slot.
//
// When several windows of the same size fit, preferRight picks the one that
// extends furthest to the right of idx first.
func minimalWindow(final []model.Item, idx int, preferRight bool) (lo, hi int) {
	fits := func(lo, hi int) bool {
		lower, upper, open := bounds(final, lo, hi)
		if open {
			return true
		}
		return upper-lower-1 >= int64(hi-lo+1)
	}
	for size := 1; size <= len(final); size++ {
		startMin := idx - (size - 1)
		if startMin < 0 {
			startMin = 0
		}
		startMax := idx
		if startMax+size > len(final) {
			startMax = len(final) - size
		}
		if preferRight {
			for lo := startMax; lo >= startMin; lo-- {
				if fits(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
		} else {
			for lo := startMin; lo <= startMax; lo++ {
				if fits(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
		}
	}
	return 0, len(final) - 1
}
