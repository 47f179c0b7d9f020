// Package statusutil normalizes grouping-field values (status columns,
// swimlane rows) against the options a board defines for that field.
package statusutil

import (
	"fmt"
	"strings"

	"rankboard/internal/model"
)

// NormalizeOptionID trims an option id typed by a user. "none" and "-" clear
// the value, which puts the item in the empty bucket.
func NormalizeOptionID(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return "", fmt.Errorf("invalid option: empty")
	case "none", "-":
		return "", nil
	default:
		return s, nil
	}
}

// ValidateOptionID reports whether id is a defined option of field on b.
// The empty value is always valid.
func ValidateOptionID(b model.Board, field, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}
	for _, opt := range b.Options[field] {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Bucket maps an item's value for field to the bucket it renders in.
// Values that name no defined option fall into the empty bucket.
func Bucket(b model.Board, field string, it model.Item) string {
	if field == "" {
		return ""
	}
	v := strings.TrimSpace(it.Value(field))
	if !ValidateOptionID(b, field, v) {
		return ""
	}
	return v
}

// Buckets returns the display order of buckets for field: defined options by
// option rank, then the empty bucket when includeEmpty is set.
func Buckets(b model.Board, field string, includeEmpty bool) []string {
	var out []string
	for _, opt := range model.SortOptions(b.Options[field]) {
		out = append(out, opt.ID)
	}
	if includeEmpty || len(out) == 0 {
		out = append(out, "")
	}
	return out
}

// Label is the display name of a bucket.
func Label(b model.Board, field, id string) string {
	if id == "" {
		if field == b.RowField && field != "" {
			return "No row"
		}
		return "No status"
	}
	for _, opt := range b.Options[field] {
		if opt.ID == id {
			if opt.Name != "" {
				return opt.Name
			}
			return opt.ID
		}
	}
	return id
}
