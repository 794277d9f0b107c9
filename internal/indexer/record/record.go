// Package record defines the contract between record sources and the index:
// a KeyRecord knows its id, its length, and the keys it is indexed under.
package record

import (
	"fmt"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
)

// KeyRecord is one indexable record.
type KeyRecord[K comparable] interface {
	// ID is stable for the lifetime of the record set.
	ID() uint32
	// Size is the document length used for length normalization.
	Size() int
	// Keys lists every key occurrence. A key repeated n times yields a
	// term frequency of n.
	Keys() []K
}

// KeyRecordSet is a finite collection of records with lookup by id.
type KeyRecordSet[K comparable] interface {
	All() iter.Seq[KeyRecord[K]]
	ByID(id uint32) (KeyRecord[K], bool)
	Len() int
}

// Entry is a plain KeyRecord.
type Entry[K comparable] struct {
	RecordID uint32
	Length   int
	KeyList  []K
}

func (e Entry[K]) ID() uint32 { return e.RecordID }
func (e Entry[K]) Size() int  { return e.Length }
func (e Entry[K]) Keys() []K  { return e.KeyList }

// MemorySet is a KeyRecordSet backed by a slice, enumerated in insertion
// order.
type MemorySet[K comparable] struct {
	records []KeyRecord[K]
	byID    map[uint32]int
}

// NewMemorySet builds a set from records. Duplicate ids are rejected.
func NewMemorySet[K comparable](records ...KeyRecord[K]) (*MemorySet[K], error) {
	s := &MemorySet[K]{
		records: make([]KeyRecord[K], 0, len(records)),
		byID:    make(map[uint32]int, len(records)),
	}
	for _, r := range records {
		if _, exists := s.byID[r.ID()]; exists {
			return nil, fmt.Errorf("duplicate record id %d", r.ID())
		}
		s.byID[r.ID()] = len(s.records)
		s.records = append(s.records, r)
	}
	return s, nil
}

func (s *MemorySet[K]) All() iter.Seq[KeyRecord[K]] {
	return func(yield func(KeyRecord[K]) bool) {
		for _, r := range s.records {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *MemorySet[K]) ByID(id uint32) (KeyRecord[K], bool) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.records[pos], true
}

func (s *MemorySet[K]) Len() int {
	return len(s.records)
}

// IndexAll adds every key occurrence of every record in set to x and returns
// the number of occurrences indexed.
func IndexAll[K comparable](x *index.InvertedIndex[K], set KeyRecordSet[K]) int {
	occurrences := 0
	for r := range set.All() {
		for _, key := range r.Keys() {
			x.AddRecord(key, r.ID())
			occurrences++
		}
	}
	return occurrences
}
