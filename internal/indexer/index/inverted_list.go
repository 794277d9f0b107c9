package index

import (
	"cmp"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedList holds the postings of one term, sorted ascending by record
// id with no duplicates. A roaring bitmap mirrors the id set for constant
// time membership tests.
type InvertedList struct {
	postings []Posting
	ids      *roaring.Bitmap
}

// NewInvertedList returns an empty list.
func NewInvertedList() *InvertedList {
	return &InvertedList{
		postings: make([]Posting, 0, 4),
		ids:      roaring.New(),
	}
}

// AddRecord inserts a default posting for id and returns true, or bumps the
// term frequency of the existing posting and returns false.
func (l *InvertedList) AddRecord(id uint32) bool {
	if l.ids.Contains(id) {
		pos, _ := l.search(id)
		l.postings[pos].IncreaseFrequency()
		return false
	}
	l.ids.Add(id)
	// Records are usually indexed in id order, so appending is the common case.
	if n := len(l.postings); n == 0 || l.postings[n-1].ID < id {
		l.postings = append(l.postings, NewPosting(id))
		return true
	}
	pos, _ := l.search(id)
	l.postings = slices.Insert(l.postings, pos, NewPosting(id))
	return true
}

// ContainsRecord reports whether id has a posting in this list.
func (l *InvertedList) ContainsRecord(id uint32) bool {
	return l.ids.Contains(id)
}

// ContainsAny reports whether at least one of ids has a posting in this list.
func (l *InvertedList) ContainsAny(ids ...uint32) bool {
	if len(ids) == 0 {
		return false
	}
	return l.ids.Intersects(roaring.BitmapOf(ids...))
}

// Size returns the number of distinct records in the list.
func (l *InvertedList) Size() int {
	return len(l.postings)
}

// Posting returns a copy of the posting for id.
func (l *InvertedList) Posting(id uint32) (Posting, bool) {
	if !l.ids.Contains(id) {
		return Posting{}, false
	}
	pos, _ := l.search(id)
	return l.postings[pos], true
}

// Postings yields copies of the postings in ascending id order. The sequence
// can be ranged over repeatedly and always reflects the current state.
func (l *InvertedList) Postings() iter.Seq[Posting] {
	return func(yield func(Posting) bool) {
		for _, p := range l.postings {
			if !yield(p) {
				return
			}
		}
	}
}

// RecordIDs yields the record ids in ascending order.
func (l *InvertedList) RecordIDs() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for _, p := range l.postings {
			if !yield(p.ID) {
				return
			}
		}
	}
}

// SetScore overwrites the score of the posting for id. It returns false if
// the list has no such posting.
func (l *InvertedList) SetScore(id uint32, score float64) bool {
	if !l.ids.Contains(id) {
		return false
	}
	pos, _ := l.search(id)
	l.postings[pos].SetScore(score)
	return true
}

// UpdateScores replaces every posting's score with the value computed by fn.
// The first error stops the pass; postings already visited keep their new
// score.
func (l *InvertedList) UpdateScores(fn func(Posting) (float64, error)) error {
	for i := range l.postings {
		score, err := fn(l.postings[i])
		if err != nil {
			return err
		}
		l.postings[i].SetScore(score)
	}
	return nil
}

// Bitmap returns a copy of the list's id set.
func (l *InvertedList) Bitmap() *roaring.Bitmap {
	return l.ids.Clone()
}

func (l *InvertedList) search(id uint32) (int, bool) {
	return slices.BinarySearchFunc(l.postings, id, func(p Posting, target uint32) int {
		return cmp.Compare(p.ID, target)
	})
}
