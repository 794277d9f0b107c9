// Package merger combines inverted lists with a min-first k-way merge: one
// cursor per list in a binary heap ordered by current record id. Memory is
// one cursor per list regardless of list length.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
)

// Intersect returns, in ascending order, the ids present in every list.
// Each argument counts as one required list, so callers must pass distinct
// terms' lists only once. No lists, or any empty list, yield no ids.
func Intersect(lists ...*index.InvertedList) []uint32 {
	return merge(lists, len(lists))
}

// Union returns, in ascending order, the ids present in at least one list.
func Union(lists ...*index.InvertedList) []uint32 {
	return merge(lists, 1)
}

// merge emits every id held by at least minMatch cursors at once.
func merge(lists []*index.InvertedList, minMatch int) []uint32 {
	result := make([]uint32, 0)
	if len(lists) == 0 || minMatch < 1 {
		return result
	}

	h := make(cursorHeap, 0, len(lists))
	defer func() {
		for _, c := range h {
			c.Stop()
		}
	}()
	for i, list := range lists {
		if list == nil {
			continue
		}
		c, ok := NewCursor(list.RecordIDs(), i)
		if !ok {
			continue
		}
		h = append(h, c)
	}
	heap.Init(&h)

	// Once fewer than minMatch cursors remain no id can reach the threshold.
	for h.Len() >= minMatch {
		smallest := h[0].RecordID()
		matched := 0
		for h.Len() > 0 && h[0].RecordID() == smallest {
			c := heap.Pop(&h).(Cursor)
			matched++
			// Lists are strictly ascending, so the advanced cursor sorts
			// after smallest and cannot be popped again this round.
			if next, ok := c.Next(); ok {
				heap.Push(&h, next)
			}
		}
		if matched >= minMatch {
			result = append(result, smallest)
		}
	}
	return result
}

type cursorHeap []Cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool { return h[i].Compare(h[j]) < 0 }

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(Cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
