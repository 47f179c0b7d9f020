package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"rankboard/internal/hierarchy"
	"rankboard/internal/model"
	"rankboard/internal/rank"
	"rankboard/internal/statusutil"
)

// Seed is the YAML fixture format: a board schema plus an item tree. Items
// are ranked in file order within their sibling group.
type Seed struct {
	Board SeedBoard  `yaml:"board"`
	Items []SeedItem `yaml:"items"`
}

type SeedBoard struct {
	ID          string                  `yaml:"id"`
	Name        string                  `yaml:"name"`
	Classes     []SeedClass             `yaml:"classes"`
	Hierarchy   map[string][]string     `yaml:"hierarchy"`
	Options     map[string][]SeedOption `yaml:"options"`
	ColumnField string                  `yaml:"column_field"`
	RowField    string                  `yaml:"row_field"`
}

type SeedClass struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

type SeedOption struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Colour string `yaml:"colour"`
}

type SeedItem struct {
	ID       string            `yaml:"id"`
	Class    string            `yaml:"class"`
	Title    string            `yaml:"title"`
	Values   map[string]string `yaml:"values"`
	Children []SeedItem        `yaml:"children"`
}

// LoadSeed decodes a seed file. Unknown keys are rejected.
func LoadSeed(r io.Reader) (Seed, error) {
	var sd Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sd); err != nil {
		if errors.Is(err, io.EOF) {
			return Seed{}, errors.New("seed file is empty")
		}
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	if strings.TrimSpace(sd.Board.ID) == "" {
		return Seed{}, errors.New("seed board needs an id")
	}
	return sd, nil
}

// Build converts the seed into a board and a flat item list. Option and
// sibling ranks are assigned at Step intervals in file order.
func (sd Seed) Build() (model.Board, []model.Item, error) {
	b := model.Board{
		ID:          strings.TrimSpace(sd.Board.ID),
		Name:        sd.Board.Name,
		Hierarchy:   model.HierarchySpec(sd.Board.Hierarchy).Clone(),
		ColumnField: sd.Board.ColumnField,
		RowField:    sd.Board.RowField,
	}
	for _, c := range sd.Board.Classes {
		b.Classes = append(b.Classes, model.Class{ID: c.ID, Name: c.Name, Title: c.Title})
	}
	if len(sd.Board.Options) > 0 {
		b.Options = make(map[string][]model.Option, len(sd.Board.Options))
		for field, opts := range sd.Board.Options {
			for i, o := range opts {
				b.Options[field] = append(b.Options[field], model.Option{
					ID: o.ID, Name: o.Name, Colour: o.Colour, Rank: rank.Step * int64(i+1),
				})
			}
		}
	}

	var items []model.Item
	seen := map[string]bool{}
	// Top-level ranks count per column/row bucket.
	topRanks := map[[2]string]int64{}

	type frame struct {
		item   SeedItem
		parent string
		rank   int64
	}
	var stack []frame
	push := func(list []SeedItem, parent string) {
		next := make([]frame, 0, len(list))
		childRank := int64(0)
		for _, si := range list {
			r := int64(0)
			if parent == "" {
				sample := model.Item{Values: si.Values}
				k := [2]string{statusutil.Bucket(b, b.ColumnField, sample), statusutil.Bucket(b, b.RowField, sample)}
				topRanks[k] += rank.Step
				r = topRanks[k]
			} else {
				childRank += rank.Step
				r = childRank
			}
			next = append(next, frame{item: si, parent: parent, rank: r})
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	push(sd.Items, "")
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := strings.TrimSpace(f.item.ID)
		if id == "" {
			gen, err := newItemID()
			if err != nil {
				return model.Board{}, nil, err
			}
			id = gen
		}
		if seen[id] {
			return model.Board{}, nil, fmt.Errorf("duplicate item id %q", id)
		}
		seen[id] = true
		if _, ok := b.FindClass(f.item.Class); !ok {
			return model.Board{}, nil, fmt.Errorf("item %s: unknown class %q", id, f.item.Class)
		}
		it := model.Item{
			ID:       id,
			ClassID:  f.item.Class,
			ParentID: f.parent,
			Rank:     f.rank,
			Title:    f.item.Title,
			Values:   map[string]string{},
		}
		for k, v := range f.item.Values {
			it.Values[k] = v
		}
		items = append(items, it)
		push(f.item.Children, id)
	}

	if vs := hierarchy.Validate(items, b.Hierarchy); len(vs) > 0 {
		return model.Board{}, nil, fmt.Errorf("seed violates hierarchy: %+v", vs[0])
	}
	return b, items, nil
}

// Seed replaces the board and every item with the seed's contents.
func (s *Store) Seed(ctx context.Context, sd Seed) error {
	board, items, err := sd.Build()
	if err != nil {
		return err
	}
	return s.Reset(ctx, board, items)
}

// Reset replaces the whole collection in one transaction and emits a single
// board/update event.
func (s *Store) Reset(ctx context.Context, board model.Board, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM items`, `DELETE FROM boards`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	now := timeNow()
	if err := saveBoard(ctx, tx, board, now); err != nil {
		return err
	}
	for _, it := range items {
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		if err := saveItem(ctx, tx, it); err != nil {
			return err
		}
	}
	ev := newEvent(model.EventBoardUpdate, board.ID, "", now)
	if err := appendEvents(ctx, tx, []model.Event{ev}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("store reset", zap.String("board", board.ID), zap.Int("items", len(items)))
	s.publish([]model.Event{ev})
	return nil
}
