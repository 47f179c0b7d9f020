// Package feed carries invalidation events from the object store to
// connected clients over a websocket. Events only say what went stale;
// clients always refetch rather than apply them.
package feed

import (
	"context"

	"go.uber.org/zap"

	"rankboard/internal/model"
)

// Scope is the part of the client cache an event invalidates.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeObjects
	ScopeBoard
)

func (s Scope) String() string {
	switch s {
	case ScopeObjects:
		return "objects"
	case ScopeBoard:
		return "board"
	default:
		return "none"
	}
}

// Route maps an event type to the cache scope it invalidates.
func Route(ev model.Event) Scope {
	switch ev.Type {
	case model.EventObjectCreate, model.EventObjectUpdate, model.EventObjectDelete, model.EventValuesUpdate:
		return ScopeObjects
	case model.EventOptionReorder, model.EventHierarchySet, model.EventBoardUpdate:
		return ScopeBoard
	default:
		return ScopeNone
	}
}

// Handler receives each decoded event.
type Handler func(ctx context.Context, ev model.Event)

// Refetcher reloads a cached collection.
type Refetcher interface {
	Refetch(ctx context.Context) error
}

// Invalidate returns a Handler that refetches r for every event that
// invalidates something. The cache reloads board and objects together, so
// both scopes trigger the same refetch.
func Invalidate(r Refetcher, log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, ev model.Event) {
		scope := Route(ev)
		if scope == ScopeNone {
			log.Debug("ignoring feed event", zap.String("type", ev.Type))
			return
		}
		if err := r.Refetch(ctx); err != nil {
			log.Warn("refetch after feed event failed",
				zap.String("type", ev.Type), zap.Stringer("scope", scope), zap.Error(err))
		}
	}
}
