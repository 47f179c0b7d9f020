package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"rankboard/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	board   model.Board
	items   []model.Item
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (f *fakeFetcher) Board(ctx context.Context) (model.Board, error) {
	return f.board.Clone(), nil
}

func (f *fakeFetcher) ListObjects(ctx context.Context) ([]model.Item, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return model.CloneItems(f.items), nil
}

func seed() (model.Board, []model.Item) {
	b := model.Board{
		ID:          "b1",
		ColumnField: "status",
		Hierarchy:   model.HierarchySpec{"task": {""}},
		Options:     map[string][]model.Option{"status": {{ID: "todo", Rank: 1000}}},
	}
	items := []model.Item{
		{ID: "a", ClassID: "task", Rank: 10, Values: map[string]string{"status": "todo"}},
		{ID: "b", ClassID: "task", Rank: 20, Values: map[string]string{"status": "todo"}},
	}
	return b, items
}

var ignoreVersion = cmpopts.IgnoreFields(Snapshot{}, "Version")

func TestSnapshot_IsDetached(t *testing.T) {
	c := New(nil)
	b, items := seed()
	c.Replace(b, items)

	snap := c.Snapshot()
	snap.Items[0].Values["status"] = "changed"
	snap.Board.Options["status"][0].Rank = 99
	items[1].Rank = 99

	got := c.Snapshot()
	if got.Items[0].Value("status") != "todo" || got.Board.Options["status"][0].Rank != 1000 || got.Items[1].Rank != 20 {
		t.Fatalf("cache shares memory with callers: %+v", got)
	}
}

func TestUpdate_RestoreRoundTrip(t *testing.T) {
	c := New(nil)
	b, items := seed()
	c.Replace(b, items)

	before, err := c.Update(func(board *model.Board, items []model.Item) ([]model.Item, error) {
		items[0].Rank = 25
		items[0].Values["status"] = "done"
		board.Options["status"] = nil
		return items, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Items()[0].Rank != 25 {
		t.Fatalf("expected speculative write to land")
	}
	c.Restore(before)
	if diff := cmp.Diff(before, c.Snapshot(), ignoreVersion); diff != "" {
		t.Fatalf("restore mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_ErrorLeavesCacheUntouched(t *testing.T) {
	c := New(nil)
	b, items := seed()
	c.Replace(b, items)
	want := c.Snapshot()

	_, err := c.Update(func(board *model.Board, items []model.Item) ([]model.Item, error) {
		items[0].Rank = 1
		return nil, errors.New("nope")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Fatalf("cache changed (-want +got):\n%s", diff)
	}
}

func TestRefetch_CoalescesConcurrentCalls(t *testing.T) {
	b, items := seed()
	f := &fakeFetcher{board: b, items: items, started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(f)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	refetch := func() {
		defer wg.Done()
		errs <- c.Refetch(context.Background())
	}
	wg.Add(1)
	go refetch()
	<-f.started
	wg.Add(2)
	go refetch()
	go refetch()
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("refetch: %v", err)
		}
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
	if !c.Loaded() || len(c.Items()) != 2 {
		t.Fatalf("expected cache to be filled")
	}
}

func TestRefetch_ErrorKeepsPreviousState(t *testing.T) {
	b, items := seed()
	f := &fakeFetcher{board: b, items: items}
	c := New(f)
	if err := c.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	want := c.Snapshot()

	f.err = errors.New("offline")
	if err := c.Refetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Fatalf("failed refetch changed cache (-want +got):\n%s", diff)
	}
}

func TestSubscribe_PingsOnWrite(t *testing.T) {
	c := New(nil)
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	b, items := seed()
	c.Replace(b, items)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected a ping after Replace")
	}
}
