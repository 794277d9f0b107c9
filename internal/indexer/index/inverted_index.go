// Package index provides the in-memory inverted index: postings, per-term
// inverted lists sorted by record id, and the term to list mapping.
package index

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// InvertedIndex maps each key to the inverted list of records containing it.
// A key is materialized only once a record is added under it, so every
// present key maps to a non-empty list.
//
// The index is not safe for concurrent mutation. Build it fully, then share
// it read-only.
type InvertedIndex[K comparable] struct {
	lists map[K]*InvertedList
}

func NewInvertedIndex[K comparable]() *InvertedIndex[K] {
	return &InvertedIndex[K]{
		lists: make(map[K]*InvertedList),
	}
}

// AddRecord registers one occurrence of key in record id. It returns true if
// the record was new to the key's list, which means the key's document
// frequency grew.
func (x *InvertedIndex[K]) AddRecord(key K, id uint32) bool {
	list, ok := x.lists[key]
	if !ok {
		list = NewInvertedList()
		x.lists[key] = list
	}
	return list.AddRecord(id)
}

func (x *InvertedIndex[K]) ContainsKey(key K) bool {
	_, ok := x.lists[key]
	return ok
}

func (x *InvertedIndex[K]) ContainsRecord(key K, id uint32) bool {
	list, ok := x.lists[key]
	return ok && list.ContainsRecord(id)
}

// Keys yields every indexed key once, in no particular order.
func (x *InvertedIndex[K]) Keys() iter.Seq[K] {
	return maps.Keys(x.lists)
}

// Records returns the inverted list for key. The boolean is false for a key
// that was never indexed.
func (x *InvertedIndex[K]) Records(key K) (*InvertedList, bool) {
	list, ok := x.lists[key]
	return list, ok
}

// Len returns the vocabulary size.
func (x *InvertedIndex[K]) Len() int {
	return len(x.lists)
}

// PostingCount returns the number of postings across all lists.
func (x *InvertedIndex[K]) PostingCount() int {
	total := 0
	for _, list := range x.lists {
		total += list.Size()
	}
	return total
}

// SortedKeys returns the keys of x in ascending order.
func SortedKeys[K cmp.Ordered](x *InvertedIndex[K]) []K {
	return slices.Sorted(maps.Keys(x.lists))
}
