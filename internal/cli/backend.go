package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rankboard/internal/cache"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
	"rankboard/internal/objapi"
	"rankboard/internal/store"
)

// backend is the object API a command talks to: the local store in-process,
// or a running server over HTTP.
type backend interface {
	mutate.API
	GetObject(ctx context.Context, id string) (model.Item, error)
}

type session struct {
	api    backend
	store  *store.Store
	client *objapi.Client
	log    *zap.Logger
}

func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func resolveDir(app *App) (string, error) {
	if d := strings.TrimSpace(app.Config.Dir); d != "" {
		return d, nil
	}
	return store.DefaultDir()
}

func openStore(ctx context.Context, app *App) (*store.Store, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return nil, err
	}
	log, err := app.logger()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, dir, store.WithLogger(log.Named("store")))
}

// openSession picks the server when one is configured and the local store
// otherwise.
func openSession(ctx context.Context, app *App) (*session, error) {
	log, err := app.logger()
	if err != nil {
		return nil, err
	}
	if srv := strings.TrimSpace(app.Config.Server); srv != "" {
		c, err := objapi.New(srv, objapi.WithLogger(log.Named("objapi")))
		if err != nil {
			return nil, err
		}
		return &session{api: c, client: c, log: log}, nil
	}
	st, err := openStore(ctx, app)
	if err != nil {
		return nil, err
	}
	return &session{api: st, store: st, log: log}, nil
}

// coordinator loads the collection into a fresh cache and wraps it.
func (s *session) coordinator(ctx context.Context, opts ...mutate.Option) (*mutate.Coordinator, error) {
	c := cache.New(s.api, cache.WithLogger(s.log.Named("cache")))
	if err := c.Refetch(ctx); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	opts = append([]mutate.Option{mutate.WithLogger(s.log.Named("mutate"))}, opts...)
	return mutate.New(s.api, c, opts...), nil
}

// await blocks until m settles and reports the outcome. Local no-ops are
// reported, not returned as errors.
func await(ctx context.Context, m *mutate.Mutation, err error) (mutationResult, error) {
	if errors.Is(err, mutate.ErrNoop) {
		return mutationResult{State: "noop", Reason: err.Error()}, nil
	}
	if err != nil {
		return mutationResult{}, err
	}
	if m == nil {
		return mutationResult{State: "noop"}, nil
	}
	if err := m.Wait(ctx); err != nil {
		return mutationResult{}, err
	}
	return mutationResult{ID: m.ID, Kind: string(m.Delta.Kind), State: m.State().String()}, nil
}

type mutationResult struct {
	ID     string `json:"id,omitempty"`
	Kind   string `json:"kind,omitempty"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}
