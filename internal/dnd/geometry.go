package dnd

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

func (r Rect) Bottom() float64 { return r.Y + r.H }
func (r Rect) MidY() float64   { return r.Y + r.H/2 }
func (r Rect) Center() Point   { return Point{X: r.X + r.W/2, Y: r.MidY()} }

// Region is a hit-testable card or row. Parent is nil for top-level regions.
type Region struct {
	ItemID   string    `json:"itemId"`
	Bounds   Rect      `json:"bounds"`
	Parent   *Region   `json:"-"`
	Children []*Region `json:"children,omitempty"`
}

func (r *Region) Nested() bool { return r != nil && r.Parent != nil }

func (r *Region) depth() int {
	d := 0
	for p := r.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// EdgeBand is the height of the reorder zone at the top and bottom of r.
// Nested regions get a larger relative band so sibling reorder stays reachable.
func (r *Region) EdgeBand() float64 {
	if r.Nested() {
		return math.Min(0.35*r.Bounds.H, 20)
	}
	return math.Min(0.2*r.Bounds.H, 12)
}

// Bucket is one column/row cell of a grouped presentation (or the whole tree).
type Bucket struct {
	Column string    `json:"column"`
	Row    string    `json:"row"`
	Bounds Rect      `json:"bounds"`
	Cards  []*Region `json:"cards"`
}

// Layout is the hit-testable region tree of one presentation. Grouped is set
// for board layouts, where a top-level drop also picks a column and row.
type Layout struct {
	Buckets []*Bucket `json:"buckets"`
	Grouped bool      `json:"grouped"`
}

// BucketAt returns the bucket whose bounds contain p.
func (l *Layout) BucketAt(p Point) *Bucket {
	if l == nil {
		return nil
	}
	for _, b := range l.Buckets {
		if b.Bounds.Contains(p) {
			return b
		}
	}
	return nil
}

// HitTest returns the deepest region containing p. Regions are searched even
// when their parent does not contain p, since tree rows nest only logically.
func (l *Layout) HitTest(p Point) *Region {
	if l == nil {
		return nil
	}
	var best *Region
	bestDepth := -1
	var stack []*Region
	for _, b := range l.Buckets {
		stack = append(stack, b.Cards...)
	}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r.Bounds.Contains(p) {
			if d := r.depth(); d > bestDepth {
				best, bestDepth = r, d
			}
		}
		stack = append(stack, r.Children...)
	}
	return best
}

// Find returns the region rendering itemID.
func (l *Layout) Find(itemID string) *Region {
	if l == nil {
		return nil
	}
	var stack []*Region
	for _, b := range l.Buckets {
		stack = append(stack, b.Cards...)
	}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r.ItemID == itemID {
			return r
		}
		stack = append(stack, r.Children...)
	}
	return nil
}

// BucketOf returns the bucket whose cards (transitively) include itemID.
func (l *Layout) BucketOf(itemID string) *Bucket {
	r := l.Find(itemID)
	if r == nil {
		return nil
	}
	for r.Parent != nil {
		r = r.Parent
	}
	for _, b := range l.Buckets {
		for _, c := range b.Cards {
			if c == r {
				return b
			}
		}
	}
	return nil
}

// siblingIndex counts the regions above p's vertical position, skipping the
// dragged one so dropping just below yourself is not a move down.
func siblingIndex(regions []*Region, p Point, draggedID string) int {
	index := 0
	for _, r := range regions {
		if r.ItemID == draggedID {
			continue
		}
		if p.Y < r.Bounds.MidY() {
			return index
		}
		index++
	}
	return index
}
