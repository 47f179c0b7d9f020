package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

func (s *Store) Board(ctx context.Context) (model.Board, error) {
	return loadBoard(ctx, s.db)
}

func (s *Store) ListObjects(ctx context.Context) ([]model.Item, error) {
	return loadItems(ctx, s.db)
}

func (s *Store) GetObject(ctx context.Context, id string) (model.Item, error) {
	id = strings.TrimSpace(id)
	items, err := readJSONRows[model.Item](ctx, s.db, `SELECT json FROM items WHERE id = ?`, id)
	if err != nil {
		return model.Item{}, err
	}
	if len(items) == 0 {
		return model.Item{}, mutate.NotFoundError{Kind: "item", ID: id}
	}
	return items[0], nil
}

// txState is the collection as seen inside one write transaction.
type txState struct {
	board  model.Board
	items  []model.Item
	before map[string]model.Item
	now    time.Time
	events []model.Event

	boardChanged bool
}

func (st *txState) emit(typ, objectID string) {
	st.events = append(st.events, newEvent(typ, st.board.ID, objectID, st.now))
}

// write runs fn over the whole collection inside a transaction, persists
// every item fn changed, and publishes fn's events after commit.
func (s *Store) write(ctx context.Context, op string, fn func(st *txState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	board, err := loadBoard(ctx, tx)
	if err != nil {
		return err
	}
	items, err := loadItems(ctx, tx)
	if err != nil {
		return err
	}
	st := &txState{
		board:  board,
		items:  items,
		before: make(map[string]model.Item, len(items)),
		now:    timeNow(),
	}
	for _, it := range items {
		st.before[it.ID] = it.Clone()
	}
	if err := fn(st); err != nil {
		return err
	}

	written := 0
	for i := range st.items {
		it := &st.items[i]
		prev, existed := st.before[it.ID]
		if existed && sameItem(prev, *it) {
			continue
		}
		it.UpdatedAt = st.now
		if !existed && it.CreatedAt.IsZero() {
			it.CreatedAt = st.now
		}
		if err := saveItem(ctx, tx, *it); err != nil {
			return err
		}
		written++
	}
	if st.boardChanged {
		if err := saveBoard(ctx, tx, st.board, st.now); err != nil {
			return err
		}
	}
	if err := appendEvents(ctx, tx, st.events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("store write", zap.String("op", op), zap.Int("items", written), zap.Int("events", len(st.events)))
	s.publish(st.events)
	return nil
}

func sameItem(a, b model.Item) bool {
	if a.ID != b.ID || a.ClassID != b.ClassID || a.ParentID != b.ParentID || a.Rank != b.Rank || a.Title != b.Title {
		return false
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for k, v := range a.Values {
		if b.Values[k] != v {
			return false
		}
	}
	return true
}

// CreateObject adds it as the last child of its parent (or of its top-level
// bucket). A blank ID gets a fresh one.
func (s *Store) CreateObject(ctx context.Context, it model.Item) (model.Item, error) {
	it.ID = strings.TrimSpace(it.ID)
	if it.ID == "" {
		id, err := newItemID()
		if err != nil {
			return model.Item{}, err
		}
		it.ID = id
	}
	var created model.Item
	err := s.write(ctx, "create", func(st *txState) error {
		if _, exists := st.before[it.ID]; exists {
			return &ConflictError{Op: "create", ItemID: it.ID, Reason: "id already exists"}
		}
		if _, ok := st.board.FindClass(it.ClassID); !ok {
			return mutate.NotFoundError{Kind: "class", ID: it.ClassID}
		}
		for f, v := range it.Values {
			if !statusutil.ValidateOptionID(st.board, f, v) && len(st.board.Options[f]) > 0 {
				return fmt.Errorf("%w: %s=%s", mutate.ErrInvalidOption, f, v)
			}
		}
		idx := hierarchy.NewIndex(st.items)
		if it.ParentID != "" {
			parent, ok := idx.Get(it.ParentID)
			if !ok {
				return mutate.NotFoundError{Kind: "item", ID: it.ParentID}
			}
			if !hierarchy.CanBeChildOf(it.ClassID, parent.ClassID, st.board.Hierarchy) {
				return &ConflictError{Op: "create", ItemID: it.ID, Err: hierarchy.ErrNotAllowed}
			}
		} else if !hierarchy.CanBeChildOf(it.ClassID, model.RootParent, st.board.Hierarchy) {
			return &ConflictError{Op: "create", ItemID: it.ID, Err: hierarchy.ErrNotAllowed}
		}
		it.Rank = rank.After(groupOf(st.board, st.items, it))
		st.items = append(st.items, it)
		st.emit(model.EventObjectCreate, it.ID)
		created = it
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	return s.GetObject(ctx, created.ID)
}

// groupOf returns the sibling group it belongs to (it excluded): its
// parent's children, or the top-level items in its column/row bucket.
func groupOf(board model.Board, items []model.Item, it model.Item) []model.Item {
	idx := hierarchy.NewIndex(items)
	parent := it.ParentID
	if _, ok := idx.Get(parent); !ok {
		parent = model.RootParent
	}
	var out []model.Item
	for _, x := range items {
		if x.ID == it.ID || idx.EffectiveParentID(x.ID) != parent {
			continue
		}
		if parent == model.RootParent &&
			(statusutil.Bucket(board, board.ColumnField, x) != statusutil.Bucket(board, board.ColumnField, it) ||
				statusutil.Bucket(board, board.RowField, x) != statusutil.Bucket(board, board.RowField, it)) {
			continue
		}
		out = append(out, x)
	}
	return out
}
