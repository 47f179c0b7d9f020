// Package cache holds the client-side copy of one board's collection: the
// board schema plus every item. Writes replace the whole collection; readers
// always get deep copies.
package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rankboard/internal/model"
)

// Fetcher loads the authoritative collection.
type Fetcher interface {
	Board(ctx context.Context) (model.Board, error)
	ListObjects(ctx context.Context) ([]model.Item, error)
}

// Snapshot is a deep, detached copy of the cached collection.
type Snapshot struct {
	Board   model.Board
	Items   []model.Item
	Version uint64
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Board: s.Board.Clone(), Items: model.CloneItems(s.Items), Version: s.Version}
}

type Cache struct {
	mu      sync.RWMutex
	cur     Snapshot
	loaded  bool
	version uint64

	fetch  Fetcher
	flight singleflight.Group
	log    *zap.Logger

	lmu       sync.Mutex
	listeners map[chan struct{}]struct{}
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func New(f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetch:     f,
		log:       zap.NewNop(),
		listeners: make(map[chan struct{}]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Loaded reports whether the cache has been filled at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.clone()
}

func (c *Cache) Board() model.Board {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur.Board.Clone()
}

func (c *Cache) Items() []model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.CloneItems(c.cur.Items)
}

// Replace swaps in a new collection.
func (c *Cache) Replace(board model.Board, items []model.Item) Snapshot {
	c.mu.Lock()
	c.version++
	c.cur = Snapshot{Board: board.Clone(), Items: model.CloneItems(items), Version: c.version}
	c.loaded = true
	out := c.cur.clone()
	c.mu.Unlock()
	c.broadcast()
	return out
}

// Restore puts a snapshot back exactly as taken. The version still advances
// so listeners see the change.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	c.version++
	c.cur = Snapshot{Board: s.Board.Clone(), Items: model.CloneItems(s.Items), Version: c.version}
	c.mu.Unlock()
	c.broadcast()
}

// Update applies fn to a private copy of the collection and installs the
// result as one write. It returns the snapshot taken before fn ran. If fn
// returns an error the cache is left untouched.
func (c *Cache) Update(fn func(board *model.Board, items []model.Item) ([]model.Item, error)) (before Snapshot, err error) {
	c.mu.Lock()
	before = c.cur.clone()
	work := c.cur.clone()
	items, err := fn(&work.Board, work.Items)
	if err != nil {
		c.mu.Unlock()
		return before, err
	}
	c.version++
	c.cur = Snapshot{Board: work.Board, Items: items, Version: c.version}
	c.mu.Unlock()
	c.broadcast()
	return before, nil
}

// Refetch reloads the collection from the Fetcher and replaces the cache.
// Concurrent calls share one fetch.
func (c *Cache) Refetch(ctx context.Context) error {
	if c.fetch == nil {
		return fmt.Errorf("cache has no fetcher")
	}
	_, err, shared := c.flight.Do("collection", func() (any, error) {
		var (
			board model.Board
			items []model.Item
		)
		eg, egctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			b, err := c.fetch.Board(egctx)
			if err != nil {
				return fmt.Errorf("fetch board: %w", err)
			}
			board = b
			return nil
		})
		eg.Go(func() error {
			its, err := c.fetch.ListObjects(egctx)
			if err != nil {
				return fmt.Errorf("fetch objects: %w", err)
			}
			items = its
			return nil
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		c.Replace(board, items)
		return nil, nil
	})
	if err != nil {
		c.log.Warn("refetch failed", zap.Error(err))
		return err
	}
	c.log.Debug("refetched collection", zap.Bool("shared", shared))
	return nil
}

// Subscribe returns a channel that receives a ping after every write.
// Callers must Unsubscribe when done.
func (c *Cache) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	c.lmu.Lock()
	c.listeners[ch] = struct{}{}
	c.lmu.Unlock()
	return ch
}

func (c *Cache) Unsubscribe(ch chan struct{}) {
	c.lmu.Lock()
	if _, ok := c.listeners[ch]; ok {
		delete(c.listeners, ch)
		close(ch)
	}
	c.lmu.Unlock()
}

func (c *Cache) broadcast() {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	for ch := range c.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
