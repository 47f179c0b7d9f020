// Package mutate is the optimistic mutation coordinator. It resolves drop
// intent into a single remote call, writes the expected result into the
// cache before the call returns, and then either refetches authoritative
// state or restores the exact pre-mutation snapshot.
package mutate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rankboard/internal/cache"
	"rankboard/internal/dnd"
	"rankboard/internal/metrics"
	"rankboard/internal/model"
)

type State int

const (
	Idle State = iota
	Pending
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Mutation tracks one submitted Delta.
type Mutation struct {
	ID    string
	Delta Delta

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newMutation(d Delta) *Mutation {
	return &Mutation{ID: uuid.NewString(), Delta: d, done: make(chan struct{})}
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err is the remote failure of a rolled back mutation.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation commits or rolls back and returns its error.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Mutation) finish(s State, err error) {
	m.mu.Lock()
	m.state = s
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

type Coordinator struct {
	api     API
	cache   *cache.Cache
	notify  Notifier
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	wg sync.WaitGroup
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notify = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTimeout bounds each remote call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func New(api API, c *cache.Cache, opts ...Option) *Coordinator {
	co := &Coordinator{
		api:     api,
		cache:   c,
		notify:  NotifierFunc(func(error) {}),
		log:     zap.NewNop(),
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(co)
	}
	return co
}

func (c *Coordinator) Cache() *cache.Cache { return c.cache }

// Submit applies d speculatively and issues its remote call in the
// background. The returned Mutation is already Pending.
func (c *Coordinator) Submit(ctx context.Context, d Delta) (*Mutation, error) {
	m := newMutation(d)
	before, err := c.cache.Update(func(board *model.Board, items []model.Item) ([]model.Item, error) {
		return items, d.apply(board, items)
	})
	if err != nil {
		return nil, err
	}
	m.setState(Pending)
	if d.Rebalanced {
		c.metrics.Rebalanced()
	}
	c.log.Debug("mutation pending",
		zap.String("mutation", m.ID),
		zap.String("kind", string(d.Kind)),
		zap.String("item", d.ItemID),
	)

	c.wg.Add(1)
	go c.reconcile(ctx, m, before)
	return m, nil
}

func (c *Coordinator) reconcile(ctx context.Context, m *Mutation, before cache.Snapshot) {
	defer c.wg.Done()
	start := time.Now()
	kind := string(m.Delta.Kind)

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	err := m.Delta.call(callCtx, c.api)
	cancel()

	if err != nil {
		c.cache.Restore(before)
		rerr := &RemoteError{MutationID: m.ID, Op: kind, Err: err}
		c.log.Warn("mutation rolled back",
			zap.String("mutation", m.ID),
			zap.String("item", m.Delta.ItemID),
			zap.Error(err),
		)
		c.metrics.ObserveMutation(kind, RolledBack.String(), time.Since(start))
		c.notify.Notify(rerr)
		m.finish(RolledBack, rerr)
		return
	}

	// The speculative write is superseded, never merged.
	if err := c.cache.Refetch(ctx); err != nil {
		c.log.Warn("refetch after commit failed", zap.String("mutation", m.ID), zap.Error(err))
	}
	c.metrics.ObserveMutation(kind, Committed.String(), time.Since(start))
	c.log.Debug("mutation committed", zap.String("mutation", m.ID), zap.Duration("took", time.Since(start)))
	m.finish(Committed, nil)
}

// Wait blocks until every submitted mutation has reconciled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Classifier builds a drop classifier over the cached collection.
func (c *Coordinator) Classifier() dnd.Classifier {
	snap := c.cache.Snapshot()
	return dnd.NewClassifier(snap.Board.Hierarchy, snap.Items)
}

// StartDrag opens a drag session for itemID against the cached collection.
func (c *Coordinator) StartDrag(itemID string) (*dnd.Session, error) {
	cl := c.Classifier()
	it, ok := cl.Index.Get(itemID)
	if !ok {
		return nil, NotFoundError{Kind: "item", ID: itemID}
	}
	return dnd.Start(cl, it)
}

// Drop finishes s and submits what it resolves to. A drop with nothing to do
// returns ErrNoop and touches nothing.
func (c *Coordinator) Drop(ctx context.Context, s *dnd.Session) (*Mutation, error) {
	cls, ok := s.Drop()
	if !ok {
		return nil, ErrNoop
	}
	return c.Apply(ctx, cls, s.DraggedID())
}

// Apply resolves cls for itemID against the cache and submits it.
func (c *Coordinator) Apply(ctx context.Context, cls dnd.Classification, itemID string) (*Mutation, error) {
	snap := c.cache.Snapshot()
	d, err := Resolve(snap.Board, snap.Items, cls, itemID)
	if err != nil {
		if errors.Is(err, ErrNoop) {
			c.log.Debug("gesture is a no-op", zap.String("item", itemID), zap.Error(err))
		}
		return nil, err
	}
	return c.Submit(ctx, d)
}
