package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"rankboard/internal/cache"
	"rankboard/internal/dnd"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
)

// ErrorSink is a mutate.Notifier that hands rollback errors to the UI.
type ErrorSink struct {
	ch chan error
}

func NewErrorSink() *ErrorSink {
	return &ErrorSink{ch: make(chan error, 16)}
}

// Notify never blocks; errors beyond the buffer are dropped.
func (s *ErrorSink) Notify(err error) {
	select {
	case s.ch <- err:
	default:
	}
}

type cacheMsg struct{}

type errMsg struct{ err error }

// slotsPerRow is the number of keyboard pointer stops inside one row: top
// edge, centre, bottom edge.
const slotsPerRow = 3

// Model is the tree view. All writes go through the coordinator; the view
// re-renders from the cache whenever it changes.
type Model struct {
	ctx     context.Context
	coord   *mutate.Coordinator
	cache   *cache.Cache
	errs    *ErrorSink
	updates chan struct{}
	keys    keyMap
	geo     dnd.Geometry

	board     model.Board
	items     []model.Item
	rows      []dnd.TreeRow
	collapsed map[string]bool
	cursor    int
	selected  string

	drag    *dnd.Session
	layout  *dnd.Layout
	slot    int
	preview dnd.Classification

	status string
	err    error
	width  int
	height int
}

func New(ctx context.Context, coord *mutate.Coordinator, errs *ErrorSink) *Model {
	if errs == nil {
		errs = NewErrorSink()
	}
	m := &Model{
		ctx:       ctx,
		coord:     coord,
		cache:     coord.Cache(),
		errs:      errs,
		keys:      defaultKeyMap(),
		geo:       dnd.DefaultGeometry,
		collapsed: map[string]bool{},
	}
	m.updates = m.cache.Subscribe()
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitCache(), m.waitErr())
}

func (m *Model) waitCache() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return cacheMsg{}
	}
}

func (m *Model) waitErr() tea.Cmd {
	ch := m.errs.ch
	return func() tea.Msg { return errMsg{err: <-ch} }
}

// refresh rebuilds rows from the cache and keeps the cursor on the same item.
func (m *Model) refresh() {
	snap := m.cache.Snapshot()
	m.board, m.items = snap.Board, snap.Items
	m.rows = dnd.FlattenTree(m.items, m.collapsed)
	if m.selected != "" {
		for i, r := range m.rows {
			if r.Item.ID == m.selected {
				m.cursor = i
				break
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if len(m.rows) > 0 {
		m.selected = m.rows[m.cursor].Item.ID
	} else {
		m.selected = ""
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case cacheMsg:
		if m.drag == nil {
			m.refresh()
		}
		return m, m.waitCache()
	case errMsg:
		m.err = msg.err
		return m, m.waitErr()
	case tea.KeyMsg:
		if m.drag != nil {
			return m, m.updateDrag(msg)
		}
		return m, m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cache.Unsubscribe(m.updates)
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, m.keys.MoveUp):
		m.submit(m.tree().MoveBy(m.ctx, m.selected, -1))
	case key.Matches(msg, m.keys.MoveDown):
		m.submit(m.tree().MoveBy(m.ctx, m.selected, 1))
	case key.Matches(msg, m.keys.Indent):
		m.submit(m.tree().Indent(m.ctx, m.selected))
	case key.Matches(msg, m.keys.Outdent):
		m.submit(m.tree().Outdent(m.ctx, m.selected))
	case key.Matches(msg, m.keys.Toggle):
		if m.selected != "" {
			m.collapsed[m.selected] = !m.collapsed[m.selected]
			m.refresh()
		}
	case key.Matches(msg, m.keys.Grab):
		m.startDrag()
	case key.Matches(msg, m.keys.Refresh):
		ctx, c := m.ctx, m.cache
		return func() tea.Msg {
			if err := c.Refetch(ctx); err != nil {
				return errMsg{err: err}
			}
			return nil
		}
	}
	return nil
}

func (m *Model) startDrag() {
	if m.selected == "" {
		return
	}
	s, err := m.coord.StartDrag(m.selected)
	if err != nil {
		m.err = err
		return
	}
	m.drag = s
	m.layout = dnd.TreeLayout(m.items, m.collapsed, m.geo)
	m.slot = m.cursor*slotsPerRow + 1
	m.preview = dnd.Classification{Kind: dnd.Invalid}
	m.status = "dragging " + m.selected
}

func (m *Model) updateDrag(msg tea.KeyMsg) tea.Cmd {
	last := len(m.rows) * slotsPerRow
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.drag.Cancel()
		m.endDrag("")
		m.cache.Unsubscribe(m.updates)
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.slot > 0 {
			m.slot--
		}
		m.preview = m.drag.Move(m.pointer(), m.layout)
	case key.Matches(msg, m.keys.Down):
		if m.slot < last {
			m.slot++
		}
		m.preview = m.drag.Move(m.pointer(), m.layout)
	case key.Matches(msg, m.keys.Drop):
		mut, err := m.coord.Drop(m.ctx, m.drag)
		m.endDrag("")
		m.submit(mut, err)
	case key.Matches(msg, m.keys.Cancel):
		m.drag.Cancel()
		m.endDrag("drag cancelled")
	}
	return nil
}

func (m *Model) endDrag(status string) {
	m.drag, m.layout = nil, nil
	m.preview = dnd.Classification{}
	m.status = status
	m.refresh()
}

// pointer maps the keyboard slot to a point inside the tree layout. The x
// coordinate sits at the right edge, which every row spans.
func (m *Model) pointer() dnd.Point {
	row, stop := m.slot/slotsPerRow, m.slot%slotsPerRow
	y := float64(row) * m.geo.RowHeight
	switch {
	case row >= len(m.rows):
		y += m.geo.RowHeight / 2
	case stop == 0:
		y += 2
	case stop == 1:
		y += m.geo.RowHeight / 2
	default:
		y += m.geo.RowHeight - 2
	}
	return dnd.Point{X: m.geo.TreeWidth - 1, Y: y}
}

// submit records the outcome of a coordinator call. Local no-ops are silent.
// tree returns the explicit operations scoped to the tree view, where every
// top-level row is a sibling of every other.
func (m *Model) tree() mutate.Ops { return m.coord.In(mutate.TreeScope) }

func (m *Model) submit(_ *mutate.Mutation, err error) {
	switch {
	case err == nil:
		m.err = nil
	case errors.Is(err, mutate.ErrNoop):
	default:
		m.err = err
	}
}
