package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
	"rankboard/internal/rank"
)

const testSeed = `
board:
  id: b1
  name: Demo
  classes:
    - {id: epic, name: Epic}
    - {id: task, name: Task}
    - {id: subtask, name: Subtask}
  hierarchy:
    epic: [""]
    task: ["", epic]
    subtask: [task]
  options:
    status:
      - {id: todo, name: To do}
      - {id: doing, name: Doing}
      - {id: done, name: Done}
  column_field: status
items:
  - id: e1
    class: epic
    title: Launch
    values: {status: todo}
    children:
      - id: t1
        class: task
        values: {status: todo}
        children:
          - {id: s1, class: subtask, values: {status: todo}}
      - {id: t2, class: task, values: {status: todo}}
  - {id: t3, class: task, values: {status: todo}}
  - {id: t4, class: task, values: {status: done}}
`

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir(), WithPublisher(rec))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sd, err := LoadSeed(strings.NewReader(testSeed))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if err := s.Seed(ctx, sd); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec.reset()
	return s, rec
}

func byID(t *testing.T, s *Store) map[string]model.Item {
	t.Helper()
	items, err := s.ListObjects(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := make(map[string]model.Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }

func TestNewItemID_Format(t *testing.T) {
	re := regexp.MustCompile(`^item-[a-z2-7]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		id, err := newItemID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if !re.MatchString(id) {
			t.Fatalf("unexpected id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSeed_RanksInFileOrder(t *testing.T) {
	s, _ := newTestStore(t)
	got := map[string]int64{}
	parents := map[string]string{}
	for id, it := range byID(t, s) {
		got[id] = it.Rank
		parents[id] = it.ParentID
	}
	want := map[string]int64{"e1": 1000, "t3": 2000, "t4": 1000, "t1": 1000, "t2": 2000, "s1": 1000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ranks (-want +got):\n%s", diff)
	}
	if parents["s1"] != "t1" || parents["t1"] != "e1" || parents["t3"] != "" {
		t.Fatalf("unexpected parents: %v", parents)
	}
	b, err := s.Board(context.Background())
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(b.Options["status"]) != 3 || b.Options["status"][2].ID != "done" || b.Options["status"][2].Rank != 3000 {
		t.Fatalf("unexpected options: %+v", b.Options["status"])
	}
}

func TestLoadSeed_RejectsBadInput(t *testing.T) {
	if _, err := LoadSeed(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty seed")
	}
	if _, err := LoadSeed(strings.NewReader("board: {id: b}\nbogus: 1\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	sd, err := LoadSeed(strings.NewReader(`
board:
  id: b
  classes: [{id: subtask}]
  hierarchy: {subtask: [task]}
items:
  - {id: s1, class: subtask}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := sd.Build(); err == nil {
		t.Fatalf("expected hierarchy violation for top-level subtask")
	}
}

func TestMoveObject_PromoteAndRegroupInOneWrite(t *testing.T) {
	s, rec := newTestStore(t)
	err := s.MoveObject(context.Background(), mutate.MoveRequest{
		ItemID:  "t1",
		Field:   "status",
		Value:   "done",
		Rank:    i64(500),
		Promote: true,
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	items := byID(t, s)
	t1 := items["t1"]
	if t1.ParentID != "" || t1.Value("status") != "done" || t1.Rank != 500 {
		t.Fatalf("unexpected t1: %+v", t1)
	}
	if items["s1"].Value("status") != "done" {
		t.Fatalf("expected grouping value to cascade to s1, got %q", items["s1"].Value("status"))
	}
	want := []string{model.EventObjectUpdate, model.EventValuesUpdate, model.EventHierarchySet}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestMoveObject_StaleScopeConflicts(t *testing.T) {
	s, rec := newTestStore(t)
	before := byID(t, s)
	err := s.MoveObject(context.Background(), mutate.MoveRequest{ItemID: "t1", Rank: i64(1500)})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if diff := cmp.Diff(before, byID(t, s)); diff != "" {
		t.Fatalf("rejected move changed state (-want +got):\n%s", diff)
	}
	if len(rec.types()) != 0 {
		t.Fatalf("rejected move must not publish, got %v", rec.types())
	}
}

func TestMoveObject_Rejections(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.MoveObject(ctx, mutate.MoveRequest{ItemID: "t3", Field: "status", Value: "nope"})
	if !errors.Is(err, mutate.ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}

	err = s.MoveObject(ctx, mutate.MoveRequest{ItemID: "s1", Promote: true, Field: "status", Value: "done"})
	if !errors.Is(err, hierarchy.ErrNotAllowed) {
		t.Fatalf("expected subtask promotion to be refused, got %v", err)
	}
	if byID(t, s)["s1"].ParentID != "t1" {
		t.Fatalf("refused promotion changed parent")
	}

	err = s.MoveObject(ctx, mutate.MoveRequest{ItemID: "ghost"})
	var nf mutate.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}

	err = s.MoveObject(ctx, mutate.MoveRequest{
		ItemID: "t3", Rank: i64(1500), SiblingRanks: map[string]int64{"t1": 10},
	})
	if !errors.As(err, new(*ConflictError)) {
		t.Fatalf("expected conflict for foreign sibling rank, got %v", err)
	}
}

func TestMoveObject_HealsTies(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.MoveObject(context.Background(), mutate.MoveRequest{ItemID: "t2", ScopeParent: "e1", Rank: i64(1000)})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	items := byID(t, s)
	group := []model.Item{items["t1"], items["t2"]}
	if err := rank.CheckStrictOrder(group); err != nil {
		t.Fatalf("expected strict order after a stale rank, got %v", err)
	}
}

func TestUpdateObject_ReparentInheritsGrouping(t *testing.T) {
	s, rec := newTestStore(t)
	err := s.UpdateObject(context.Background(), "t4", mutate.ObjectUpdate{Parent: str("e1"), Rank: i64(3000)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	t4 := byID(t, s)["t4"]
	if t4.ParentID != "e1" || t4.Value("status") != "todo" || t4.Rank != 3000 {
		t.Fatalf("unexpected t4: %+v", t4)
	}
	want := []string{model.EventObjectUpdate, model.EventHierarchySet}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestUpdateObject_RejectsCycleAndSelf(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	before := byID(t, s)

	err := s.UpdateObject(ctx, "e1", mutate.ObjectUpdate{Parent: str("t1")})
	if !errors.Is(err, hierarchy.ErrCycle) {
		t.Fatalf("expected cycle, got %v", err)
	}
	err = s.UpdateObject(ctx, "t3", mutate.ObjectUpdate{Parent: str("t3")})
	if !errors.Is(err, hierarchy.ErrSelfDrop) {
		t.Fatalf("expected self drop, got %v", err)
	}
	err = s.UpdateObject(ctx, "t3", mutate.ObjectUpdate{Parent: str("ghost")})
	if !errors.As(err, new(*ConflictError)) {
		t.Fatalf("expected conflict for missing parent, got %v", err)
	}
	if diff := cmp.Diff(before, byID(t, s)); diff != "" {
		t.Fatalf("rejected updates changed state (-want +got):\n%s", diff)
	}
}

func TestReorderOptions(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := context.Background()

	if err := s.ReorderOptions(ctx, "task", "status", []string{"done", "todo", "doing"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	b, err := s.Board(ctx)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	var got []string
	for _, o := range b.Options["status"] {
		got = append(got, o.ID)
	}
	if diff := cmp.Diff([]string{"done", "todo", "doing"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{model.EventOptionReorder}, rec.types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	if err := s.ReorderOptions(ctx, "", "status", []string{"done", "todo"}); !errors.Is(err, mutate.ErrInvalidOption) {
		t.Fatalf("expected invalid option for partial order, got %v", err)
	}
	var nf mutate.NotFoundError
	if err := s.ReorderOptions(ctx, "", "priority", []string{"x"}); !errors.As(err, &nf) {
		t.Fatalf("expected not found field, got %v", err)
	}
	if err := s.ReorderOptions(ctx, "ghost", "status", []string{"done", "todo", "doing"}); !errors.As(err, &nf) {
		t.Fatalf("expected not found class, got %v", err)
	}
}

func TestCreateObject_AppendsToGroup(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := context.Background()
	it, err := s.CreateObject(ctx, model.Item{ClassID: "task", ParentID: "e1", Title: "new"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(it.ID, "item-") || it.Rank != 3000 || it.CreatedAt.IsZero() {
		t.Fatalf("unexpected created item: %+v", it)
	}
	if diff := cmp.Diff([]string{model.EventObjectCreate}, rec.types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if _, err := s.CreateObject(ctx, model.Item{ClassID: "subtask"}); !errors.Is(err, hierarchy.ErrNotAllowed) {
		t.Fatalf("expected top-level subtask to be refused, got %v", err)
	}
	if _, err := s.CreateObject(ctx, model.Item{ID: "t1", ClassID: "task"}); !errors.As(err, new(*ConflictError)) {
		t.Fatalf("expected duplicate id conflict, got %v", err)
	}
}

func TestDoctor_FixRebalancesTies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	board, err := s.Board(ctx)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	items := []model.Item{
		{ID: "a", ClassID: "task", Rank: 5, Values: map[string]string{"status": "todo"}},
		{ID: "b", ClassID: "task", Rank: 5, Values: map[string]string{"status": "todo"}},
		{ID: "c", ClassID: "task", Rank: 5, Values: map[string]string{"status": "done"}},
		{ID: "x", ClassID: "subtask", ParentID: "gone", Rank: 1},
	}
	if err := s.Reset(ctx, board, items); err != nil {
		t.Fatalf("reset: %v", err)
	}

	rep, err := s.Doctor(ctx)
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if rep.OK() || len(rep.Ties) != 1 || rep.Ties[0].Group.Column != "todo" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Violations) != 1 || rep.Violations[0].Kind != hierarchy.KindDangling {
		t.Fatalf("expected one dangling parent, got %+v", rep.Violations)
	}

	fixed, err := s.Fix(ctx)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if fixed.Fixed != 2 {
		t.Fatalf("expected two renumbered items, got %d", fixed.Fixed)
	}
	rep, err = s.Doctor(ctx)
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if len(rep.Ties) != 0 {
		t.Fatalf("ties remain after fix: %+v", rep.Ties)
	}
}

func TestEvents_OldestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.MoveObject(ctx, mutate.MoveRequest{ItemID: "t3", Rank: i64(2500)}); err != nil {
		t.Fatalf("move: %v", err)
	}
	evs, err := s.Events(ctx, 2)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != model.EventBoardUpdate || evs[1].Type != model.EventObjectUpdate || evs[1].Object != "t3" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}
