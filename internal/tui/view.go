package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	xansi "github.com/charmbracelet/x/ansi"

	"rankboard/internal/dnd"
	"rankboard/internal/statusutil"
)

func (m *Model) View() string {
	var b strings.Builder
	title := m.board.Name
	if title == "" {
		title = m.board.ID
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(styleMuted().Render("(no items)"))
		b.WriteString("\n")
	}
	for i, row := range m.rows {
		b.WriteString(m.fit(m.renderRow(i, row)))
		b.WriteString("\n")
	}
	if m.drag != nil && m.slot >= len(m.rows)*slotsPerRow {
		b.WriteString(targetStyle.Render("▼ (end)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *Model) renderRow(i int, row dnd.TreeRow) string {
	glyph := "  "
	if row.HasChildren {
		glyph = "▾ "
		if row.Collapsed {
			glyph = "▸ "
		}
	}
	label := row.Item.Title
	if label == "" {
		label = row.Item.ID
	}
	line := strings.Repeat("  ", row.Depth) + glyph + label
	if col := statusutil.Bucket(m.board, m.board.ColumnField, row.Item); col != "" {
		line += "  " + valueStyle.Render("["+col+"]")
	}

	marker := "  "
	if m.drag != nil && m.slot/slotsPerRow == i {
		switch m.slot % slotsPerRow {
		case 0:
			marker = targetStyle.Render("▲ ")
		case 1:
			marker = targetStyle.Render("● ")
		default:
			marker = targetStyle.Render("▼ ")
		}
	}

	switch {
	case m.drag != nil && row.Item.ID == m.drag.DraggedID():
		return marker + draggedStyle.Render(line)
	case m.drag == nil && i == m.cursor:
		return marker + selectedStyle.Render(line)
	default:
		return marker + line
	}
}

func (m *Model) footer() string {
	var lines []string
	if m.drag != nil {
		lines = append(lines, targetStyle.Render("drop: "+m.preview.String()))
	}
	if m.status != "" {
		lines = append(lines, styleMuted().Render(m.status))
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
	}
	bindings := m.keys.browseHelp()
	if m.drag != nil {
		bindings = m.keys.dragHelp()
	}
	lines = append(lines, m.fit(styleMuted().Render(helpLine(bindings))))
	return strings.Join(lines, "\n")
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// fit truncates s to the terminal width once the width is known.
func (m *Model) fit(s string) string {
	if m.width <= 0 || xansi.StringWidth(s) <= m.width {
		return s
	}
	return xansi.Truncate(s, m.width, "…")
}
