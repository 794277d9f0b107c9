package merger

import (
	"fmt"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
)

func listOf(ids ...uint32) *index.InvertedList {
	l := index.NewInvertedList()
	for _, id := range ids {
		l.AddRecord(id)
	}
	return l
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name  string
		lists []*index.InvertedList
		want  []uint32
	}{
		{
			name:  "three lists",
			lists: []*index.InvertedList{listOf(1, 2, 3, 4), listOf(2, 3, 5), listOf(2, 3, 9)},
			want:  []uint32{2, 3},
		},
		{
			name:  "single list emits everything",
			lists: []*index.InvertedList{listOf(7, 3, 5)},
			want:  []uint32{3, 5, 7},
		},
		{
			name:  "with empty list",
			lists: []*index.InvertedList{listOf(1, 2, 3), index.NewInvertedList()},
			want:  []uint32{},
		},
		{
			name:  "with nil list",
			lists: []*index.InvertedList{listOf(1, 2, 3), nil},
			want:  []uint32{},
		},
		{
			name:  "disjoint",
			lists: []*index.InvertedList{listOf(1, 3, 5), listOf(2, 4, 6)},
			want:  []uint32{},
		},
		{
			name:  "no lists",
			lists: nil,
			want:  []uint32{},
		},
		{
			name:  "match at the tail",
			lists: []*index.InvertedList{listOf(1, 2, 100), listOf(50, 100), listOf(99, 100)},
			want:  []uint32{100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(tt.lists...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Intersect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectSameListTwice(t *testing.T) {
	l := listOf(4, 8, 15, 16, 23, 42)
	got := Intersect(l, l)
	want := slices.Collect(l.RecordIDs())
	if !slices.Equal(got, want) {
		t.Errorf("Intersect(l, l) = %v, want %v", got, want)
	}
}

// A repeated list counts as a separate required list. Passing the same
// list alongside a narrower one still intersects correctly, but the
// threshold is the number of arguments, not of distinct terms.
func TestIntersectThresholdCountsArguments(t *testing.T) {
	wide := listOf(1, 2, 3)
	narrow := listOf(2)
	if got := Intersect(wide, wide, narrow); !slices.Equal(got, []uint32{2}) {
		t.Errorf("Intersect(wide, wide, narrow) = %v, want [2]", got)
	}
}

func TestUnion(t *testing.T) {
	got := Union(listOf(1, 4), listOf(2, 4, 6), nil, index.NewInvertedList(), listOf(9))
	want := []uint32{1, 2, 4, 6, 9}
	if !slices.Equal(got, want) {
		t.Errorf("Union() = %v, want %v", got, want)
	}
	if got := Union(); len(got) != 0 {
		t.Errorf("Union() of nothing = %v", got)
	}
}

func TestIntersectMatchesNaive(t *testing.T) {
	a, b, c := index.NewInvertedList(), index.NewInvertedList(), index.NewInvertedList()
	var want []uint32
	for id := uint32(0); id < 1000; id++ {
		inA, inB, inC := id%2 == 0, id%3 == 0, id%5 == 0
		if inA {
			a.AddRecord(id)
		}
		if inB {
			b.AddRecord(id)
		}
		if inC {
			c.AddRecord(id)
		}
		if inA && inB && inC {
			want = append(want, id)
		}
	}
	got := Intersect(a, b, c)
	if !slices.Equal(got, want) {
		t.Errorf("Intersect() returned %d ids, want %d", len(got), len(want))
	}
}

func TestCursor(t *testing.T) {
	c, ok := NewCursor(slices.Values([]uint32{1, 2, 3}), 0)
	if !ok {
		t.Fatal("NewCursor on non-empty source returned false")
	}
	defer c.Stop()

	var seen []uint32
	for {
		seen = append(seen, c.RecordID())
		next, ok := c.Next()
		if !ok {
			break
		}
		if next.RecordID() <= c.RecordID() {
			t.Fatalf("cursor moved backwards: %d -> %d", c.RecordID(), next.RecordID())
		}
		c = next
	}
	if !slices.Equal(seen, []uint32{1, 2, 3}) {
		t.Errorf("cursor visited %v", seen)
	}

	if _, ok := NewCursor(slices.Values([]uint32{}), 1); ok {
		t.Error("NewCursor on empty source returned true")
	}
}

func TestCursorAdvanceKeepsOldValue(t *testing.T) {
	c, _ := NewCursor(slices.Values([]uint32{5, 6}), 0)
	defer c.Stop()
	next, _ := c.Next()
	if c.RecordID() != 5 || next.RecordID() != 6 {
		t.Errorf("old = %d, new = %d; want 5, 6", c.RecordID(), next.RecordID())
	}
}

func TestCursorCompare(t *testing.T) {
	low, _ := NewCursor(slices.Values([]uint32{0, 2}), 1)
	high, _ := NewCursor(slices.Values([]uint32{1, 3}), 0)
	tie, _ := NewCursor(slices.Values([]uint32{0}), 2)
	defer low.Stop()
	defer high.Stop()
	defer tie.Stop()

	tests := []struct {
		a, b Cursor
		sign int
	}{
		{low, low, 0},
		{low, high, -1},
		{high, low, 1},
		{low, tie, -1},
		{tie, low, 1},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			got := tt.a.Compare(tt.b)
			if (got < 0 && tt.sign >= 0) || (got > 0 && tt.sign <= 0) || (got == 0 && tt.sign != 0) {
				t.Errorf("Compare() = %d, want sign %d", got, tt.sign)
			}
		})
	}
}
