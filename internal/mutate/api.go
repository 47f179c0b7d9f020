package mutate

import (
	"context"

	"rankboard/internal/model"
)

// MoveRequest is one moveObject call. Field/Value regroup the item (Field ""
// leaves grouping alone), RowField/RowValue move it between swimlanes, Rank
// sets its order among ScopeParent's children, and Promote clears its parent
// in the same write. SiblingRanks carries a rebalanced window of the
// destination group.
type MoveRequest struct {
	ItemID       string           `json:"itemId"`
	Field        string           `json:"field,omitempty"`
	Value        string           `json:"value,omitempty"`
	Rank         *int64           `json:"rank,omitempty"`
	RowField     string           `json:"rowField,omitempty"`
	RowValue     *string          `json:"rowValue,omitempty"`
	ScopeParent  string           `json:"scopeParent,omitempty"`
	Promote      bool             `json:"promote,omitempty"`
	SiblingRanks map[string]int64 `json:"siblingRanks,omitempty"`
}

// ObjectUpdate is one updateObject call. Parent nil leaves the parent alone;
// a pointer to "" clears it.
type ObjectUpdate struct {
	Parent       *string          `json:"parent,omitempty"`
	Rank         *int64           `json:"rank,omitempty"`
	SiblingRanks map[string]int64 `json:"siblingRanks,omitempty"`
}

// API is the object-management surface the coordinator writes through.
type API interface {
	MoveObject(ctx context.Context, req MoveRequest) error
	UpdateObject(ctx context.Context, itemID string, upd ObjectUpdate) error
	ReorderOptions(ctx context.Context, classID, fieldID string, order []string) error
	Board(ctx context.Context) (model.Board, error)
	ListObjects(ctx context.Context) ([]model.Item, error)
}

// Notifier surfaces remote failures to the user.
type Notifier interface {
	Notify(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

func ptr[T any](v T) *T { return &v }
