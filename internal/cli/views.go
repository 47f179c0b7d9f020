package cli

import (
	"fmt"
	"strconv"
	"strings"

	"rankboard/internal/dnd"
	"rankboard/internal/model"
	"rankboard/internal/store"
)

// itemList renders as a JSON array or as a table.
type itemList []model.Item

func (l itemList) TableHeaders() []string {
	return []string{"ID", "CLASS", "PARENT", "RANK", "TITLE"}
}

func (l itemList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, it := range l {
		rows = append(rows, []string{it.ID, it.ClassID, it.ParentID, strconv.FormatInt(it.Rank, 10), it.Title})
	}
	return rows
}

// boardView is the bucketed board: one entry per column/row cell with its
// top-level cards in rank order.
type boardView struct {
	Board   model.Board  `json:"board"`
	Buckets []bucketView `json:"buckets"`
}

type bucketView struct {
	Column string   `json:"column"`
	Row    string   `json:"row,omitempty"`
	Items  []string `json:"items"`
}

func newBoardView(board model.Board, items []model.Item) boardView {
	l := dnd.BoardLayout(board, items, dnd.DefaultGeometry)
	out := boardView{Board: board, Buckets: make([]bucketView, 0, len(l.Buckets))}
	for _, b := range l.Buckets {
		bv := bucketView{Column: b.Column, Row: b.Row, Items: []string{}}
		for _, c := range b.Cards {
			bv.Items = append(bv.Items, c.ItemID)
		}
		out.Buckets = append(out.Buckets, bv)
	}
	return out
}

func (v boardView) TableHeaders() []string {
	return []string{"COLUMN", "ROW", "ITEMS"}
}

func (v boardView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Buckets))
	for _, b := range v.Buckets {
		rows = append(rows, []string{label(b.Column), b.Row, strings.Join(b.Items, ", ")})
	}
	return rows
}

type treeRow struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Title    string `json:"title,omitempty"`
	Depth    int    `json:"depth"`
	Children bool   `json:"hasChildren"`
}

type treeView []treeRow

func newTreeView(items []model.Item, collapsed map[string]bool) treeView {
	rows := dnd.FlattenTree(items, collapsed)
	out := make(treeView, 0, len(rows))
	for _, r := range rows {
		out = append(out, treeRow{ID: r.Item.ID, Class: r.Item.ClassID, Title: r.Item.Title, Depth: r.Depth, Children: r.HasChildren})
	}
	return out
}

func (v treeView) TableHeaders() []string {
	return []string{"ITEM", "CLASS", "TITLE"}
}

func (v treeView) TableRows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		rows = append(rows, []string{strings.Repeat("  ", r.Depth) + r.ID, r.Class, r.Title})
	}
	return rows
}

type eventList []model.Event

func (l eventList) TableHeaders() []string {
	return []string{"TIME", "TYPE", "OBJECT"}
}

func (l eventList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, ev := range l {
		rows = append(rows, []string{ev.TS.Format("2006-01-02 15:04:05"), ev.Type, ev.Object})
	}
	return rows
}

type doctorView store.Report

func (v doctorView) TableHeaders() []string {
	return []string{"CHECK", "GROUP", "DETAIL"}
}

func (v doctorView) TableRows() [][]string {
	var rows [][]string
	for _, g := range v.Ties {
		group := strings.Join([]string{label(g.Group.Parent), label(g.Group.Column), g.Group.Row}, "/")
		for _, t := range g.Ties {
			rows = append(rows, []string{"tie", group, fmt.Sprintf("%s and %s share rank %d", t.A, t.B, t.Rank)})
		}
	}
	for _, vio := range v.Violations {
		rows = append(rows, []string{string(vio.Kind), vio.ItemID, label(vio.ParentID)})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{"ok", "", strconv.Itoa(v.Items) + " items"})
	}
	return rows
}

func label(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
