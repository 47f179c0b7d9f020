// Package tui is the interactive tree view. Keyboard moves and drags go
// through the mutation coordinator, so the view shows optimistic state and
// snaps back when the backend rejects a change.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"rankboard/internal/mutate"
)

// Run blocks until the user quits or ctx is cancelled. errs should be the
// notifier the coordinator was built with.
func Run(ctx context.Context, coord *mutate.Coordinator, errs *ErrorSink) error {
	applyColorProfilePreference()
	m := New(ctx, coord, errs)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
