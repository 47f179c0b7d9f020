package rank

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"rankboard/internal/model"
)

// Step is the gap left after the last sibling and between rebalanced ranks.
const Step int64 = 1000

// ErrNoSpace means the neighbours of an insertion point are adjacent (or tied),
// so no integer rank lies strictly between them. Callers rebalance.
var ErrNoSpace = errors.New("no space between ranks")

// Between returns floor((prev+next)/2) when it lies strictly between prev and next.
func Between(prev, next int64) (int64, error) {
	if next-prev <= 1 {
		return 0, ErrNoSpace
	}
	return floorDiv(prev+next, 2), nil
}

// Allocate computes the rank for an item inserted at insertIndex among
// siblings (sorted by rank). The item identified by excludeID is ignored so
// callers can pass the group as displayed.
//
// The previous neighbour defaults to 0 and the next one to prev+Step.
func Allocate(siblings []model.Item, insertIndex int, excludeID string) (int64, error) {
	sibs := without(siblings, excludeID)
	if insertIndex < 0 {
		insertIndex = 0
	}
	if insertIndex > len(sibs) {
		insertIndex = len(sibs)
	}
	var prev int64
	if insertIndex > 0 {
		prev = sibs[insertIndex-1].Rank
	}
	next := prev + Step
	if insertIndex < len(sibs) {
		next = sibs[insertIndex].Rank
	}
	return Between(prev, next)
}

// After returns a rank that sorts after every sibling.
func After(siblings []model.Item) int64 {
	var max int64
	for _, s := range siblings {
		if s.Rank > max {
			max = s.Rank
		}
	}
	return max + Step
}

// Rebalance renumbers a whole sibling group in display order: Step, 2*Step, ...
func Rebalance(siblings []model.Item) map[string]int64 {
	cur := model.CloneItems(siblings)
	SortByRank(cur)
	out := make(map[string]int64, len(cur))
	for i, it := range cur {
		out[it.ID] = Step * int64(i+1)
	}
	return out
}

// SortByRank sorts items in place: rank, then CreatedAt, then ID.
func SortByRank(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return compare(items[i], items[j]) < 0
	})
}

func compare(a, b model.Item) int {
	if a.Rank != b.Rank {
		if a.Rank < b.Rank {
			return -1
		}
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// Tie is a pair of display-adjacent siblings sharing a rank.
type Tie struct {
	Rank int64  `json:"rank"`
	A    string `json:"a"`
	B    string `json:"b"`
}

// Ties reports rank collisions inside one sibling group.
func Ties(siblings []model.Item) []Tie {
	cur := model.CloneItems(siblings)
	SortByRank(cur)
	var out []Tie
	for i := 1; i < len(cur); i++ {
		if cur[i].Rank == cur[i-1].Rank {
			out = append(out, Tie{Rank: cur[i].Rank, A: cur[i-1].ID, B: cur[i].ID})
		}
	}
	return out
}

// ErrTie is returned by CheckStrictOrder when two siblings share a rank.
var ErrTie = errors.New("siblings share a rank")

// CheckStrictOrder returns ErrTie, naming the first colliding pair, when the
// group is not strictly ordered by rank.
func CheckStrictOrder(siblings []model.Item) error {
	ties := Ties(siblings)
	if len(ties) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s and %s at %d", ErrTie, ties[0].A, ties[0].B, ties[0].Rank)
}

func without(items []model.Item, id string) []model.Item {
	id = strings.TrimSpace(id)
	if id == "" {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.ID == id {
			continue
		}
		out = append(out, it)
	}
	return out
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
