package dnd

import (
	"errors"

	"rankboard/internal/model"
)

var ErrSessionDone = errors.New("drag session already finished")

// Session is the state of one drag gesture. It is owned by a single handler,
// created on drag start, and unusable once dropped or cancelled.
type Session struct {
	classifier Classifier
	draggedID  string
	class      string
	last       Point
	moved      bool
	cls        Classification
	done       bool
}

// Start opens a session for dragging item.
func Start(c Classifier, item model.Item) (*Session, error) {
	if _, ok := c.Index.Get(item.ID); !ok {
		return nil, errors.New("dragged item is not in the index")
	}
	return &Session{classifier: c, draggedID: item.ID, class: item.ClassID}, nil
}

func (s *Session) DraggedID() string    { return s.draggedID }
func (s *Session) DraggedClass() string { return s.class }
func (s *Session) LastPointer() Point   { return s.last }
func (s *Session) Done() bool           { return s.done }

// Classification is the intent at the last pointer position.
func (s *Session) Classification() Classification { return s.cls }

// Move records a pointer position and reclassifies.
func (s *Session) Move(p Point, layout *Layout) Classification {
	if s.done {
		return Classification{Kind: Invalid}
	}
	s.last = p
	s.moved = true
	s.cls = s.classifier.Classify(p, layout, s.draggedID)
	return s.cls
}

// Drop ends the gesture. ok is false when nothing should be issued: the
// pointer never moved, or the last classification was Invalid.
func (s *Session) Drop() (cls Classification, ok bool) {
	if s.done {
		return Classification{Kind: Invalid}, false
	}
	s.done = true
	if !s.moved || s.cls.Kind == Invalid {
		return Classification{Kind: Invalid}, false
	}
	return s.cls, true
}

func (s *Session) Cancel() {
	s.done = true
	s.cls = Classification{Kind: Invalid}
}
