package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"rankboard/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoute(t *testing.T) {
	cases := map[string]Scope{
		model.EventObjectCreate:  ScopeObjects,
		model.EventObjectUpdate:  ScopeObjects,
		model.EventObjectDelete:  ScopeObjects,
		model.EventValuesUpdate:  ScopeObjects,
		model.EventOptionReorder: ScopeBoard,
		model.EventHierarchySet:  ScopeBoard,
		model.EventBoardUpdate:   ScopeBoard,
		"comment/create":         ScopeNone,
	}
	for typ, want := range cases {
		if got := Route(model.Event{Type: typ}); got != want {
			t.Fatalf("%s: expected %v, got %v", typ, want, got)
		}
	}
}

type countingRefetcher struct {
	n   atomic.Int32
	err error
}

func (c *countingRefetcher) Refetch(ctx context.Context) error {
	c.n.Add(1)
	return c.err
}

func TestInvalidate_RefetchesOnlyRelevantEvents(t *testing.T) {
	r := &countingRefetcher{err: errors.New("offline")}
	h := Invalidate(r, nil)
	ctx := context.Background()
	h(ctx, model.Event{Type: model.EventObjectUpdate})
	h(ctx, model.Event{Type: model.EventOptionReorder})
	h(ctx, model.Event{Type: "attachment/add"})
	if got := r.n.Load(); got != 2 {
		t.Fatalf("expected two refetches, got %d", got)
	}
}

func TestHub_DeliversPublishedEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	got := make(chan model.Event, 4)
	resynced := make(chan struct{}, 4)
	sub := NewSubscriber(wsURL(srv),
		func(ctx context.Context, ev model.Event) { got <- ev },
		WithResync(func(ctx context.Context) { resynced <- struct{}{} }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Run(ctx) }()

	select {
	case <-resynced:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never connected")
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("hub never registered the client")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(model.Event{ID: "e1", Type: model.EventObjectUpdate, Board: "b1", Object: "t1"})
	select {
	case ev := <-got:
		if ev.ID != "e1" || ev.Object != "t1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not delivered")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("hub kept a disconnected client")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriber_ReconnectsAfterClose(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		_ = conn.WriteJSON(model.Event{ID: "ev", Type: model.EventBoardUpdate, Object: string(rune('0' + n))})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	defer srv.Close()

	got := make(chan model.Event, 8)
	sub := NewSubscriber(wsURL(srv),
		func(ctx context.Context, ev model.Event) {
			select {
			case got <- ev:
			default:
			}
		},
		WithReconnectDelay(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected event %d after reconnect", i+1)
		}
	}
	cancel()
	<-errCh
	if conns.Load() < 2 {
		t.Fatalf("expected a reconnect, got %d connections", conns.Load())
	}
}

func TestHub_ClosedRefusesClients(t *testing.T) {
	hub := NewHub()
	hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
	if hub.Clients() != 0 {
		t.Fatalf("closed hub registered a client")
	}
}
