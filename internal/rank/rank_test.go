package rank

import (
	"errors"
	"testing"

	"rankboard/internal/model"
)

func items(pairs ...any) []model.Item {
	out := []model.Item{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Item{ID: pairs[i].(string), Rank: int64(pairs[i+1].(int))})
	}
	return out
}

func TestAllocate_Midpoint(t *testing.T) {
	sibs := items("a", 10, "b", 20, "c", 30)

	cases := []struct {
		name  string
		index int
		want  int64
	}{
		{"first", 0, 5},
		{"between a and b", 1, 15},
		{"between b and c", 2, 25},
		{"after last", 3, 530},
	}
	for _, tc := range cases {
		got, err := Allocate(sibs, tc.index, "")
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestAllocate_EmptyGroup(t *testing.T) {
	got, err := Allocate(nil, 0, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != Step/2 {
		t.Fatalf("expected %d, got %d", Step/2, got)
	}
}

func TestAllocate_ExcludesMovedItem(t *testing.T) {
	// a is being moved; the group as displayed still contains it.
	sibs := items("a", 10, "b", 20, "c", 30)
	got, err := Allocate(sibs, 1, "a")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 25 {
		t.Fatalf("expected 25 (between b and c), got %d", got)
	}
}

func TestAllocate_RepeatedInsertionDetectsCollision(t *testing.T) {
	sibs := items("a", 10, "b", 20, "c", 30)

	r, err := Allocate(sibs, 1, "")
	if err != nil || r != 15 {
		t.Fatalf("expected 15, got %d (err %v)", r, err)
	}
	sibs = append(sibs, model.Item{ID: "d", Rank: r})
	SortByRank(sibs)

	r, err = Allocate(sibs, 1, "")
	if err != nil || r != 12 {
		t.Fatalf("expected 12, got %d (err %v)", r, err)
	}

	// Keep inserting immediately above rank 10 until the gap runs out.
	names := []string{"e", "f", "g", "h", "i"}
	var collided bool
	for n := 0; n < len(names); n++ {
		SortByRank(sibs)
		if n == 0 {
			sibs = append(sibs, model.Item{ID: names[n], Rank: r})
			continue
		}
		r, err = Allocate(sibs, 1, "")
		if errors.Is(err, ErrNoSpace) {
			collided = true
			break
		}
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		for _, s := range sibs {
			if s.Rank == r {
				t.Fatalf("silent duplicate rank %d", r)
			}
		}
		sibs = append(sibs, model.Item{ID: names[n], Rank: r})
	}
	if !collided {
		t.Fatalf("expected ErrNoSpace after repeated insertion above rank 10")
	}
	if len(Ties(sibs)) != 0 {
		t.Fatalf("expected no ties, got %v", Ties(sibs))
	}
}

func TestBetween_TiedNeighbours(t *testing.T) {
	if _, err := Between(10, 10); !errors.Is(err, ErrNoSpace) {
		t.Fatalf("expected ErrNoSpace for tied neighbours, got %v", err)
	}
	if _, err := Between(10, 11); !errors.Is(err, ErrNoSpace) {
		t.Fatalf("expected ErrNoSpace for adjacent neighbours, got %v", err)
	}
}

func TestBetween_FloorsNegativeSums(t *testing.T) {
	got, err := Between(-3, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != -2 {
		t.Fatalf("expected floor(-1.5) = -2, got %d", got)
	}
}

func TestRebalance_SequentialInDisplayOrder(t *testing.T) {
	sibs := items("c", 5, "a", 5, "b", 1)
	got := Rebalance(sibs)
	want := map[string]int64{"b": Step, "a": 2 * Step, "c": 3 * Step}
	for id, r := range want {
		if got[id] != r {
			t.Fatalf("%s: expected %d, got %d", id, r, got[id])
		}
	}
}

func TestTies(t *testing.T) {
	if ties := Ties(items("a", 1, "b", 2)); len(ties) != 0 {
		t.Fatalf("expected no ties, got %v", ties)
	}
	ties := Ties(items("a", 7, "b", 7, "c", 9))
	if len(ties) != 1 || ties[0].Rank != 7 || ties[0].A != "a" || ties[0].B != "b" {
		t.Fatalf("unexpected ties: %v", ties)
	}
}

func TestCheckStrictOrder(t *testing.T) {
	if err := CheckStrictOrder(items("a", 1, "b", 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckStrictOrder(items("a", 3, "b", 3)); !errors.Is(err, ErrTie) {
		t.Fatalf("expected ErrTie, got %v", err)
	}
}
