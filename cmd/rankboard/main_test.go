package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRewriteDirectItemLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"rankboard"},
			want: []string{"rankboard"},
		},
		{
			name: "direct item id first token",
			in:   []string{"rankboard", "item-abc123"},
			want: []string{"rankboard", "items", "show", "item-abc123"},
		},
		{
			name: "direct item id after value flag",
			in:   []string{"rankboard", "--dir", "./tmp-board", "item-abc123"},
			want: []string{"rankboard", "--dir", "./tmp-board", "items", "show", "item-abc123"},
		},
		{
			name: "direct item id after server flag",
			in:   []string{"rankboard", "--server", "http://127.0.0.1:7410", "item-abc123"},
			want: []string{"rankboard", "--server", "http://127.0.0.1:7410", "items", "show", "item-abc123"},
		},
		{
			name: "direct item id after equals flag",
			in:   []string{"rankboard", "--dir=./tmp-board", "item-abc123"},
			want: []string{"rankboard", "--dir=./tmp-board", "items", "show", "item-abc123"},
		},
		{
			name: "direct item id after bool flag",
			in:   []string{"rankboard", "-v", "item-abc123"},
			want: []string{"rankboard", "-v", "items", "show", "item-abc123"},
		},
		{
			name: "direct item id after double dash",
			in:   []string{"rankboard", "--pretty", "--", "item-abc123"},
			want: []string{"rankboard", "--pretty", "items", "show", "item-abc123"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"rankboard", "items", "show", "item-abc123"},
			want: []string{"rankboard", "items", "show", "item-abc123"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"rankboard", "item-"},
			want: []string{"rankboard", "item-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectItemLookupArgs(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("rewriteDirectItemLookupArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
