package merger

import (
	"cmp"
	"iter"
)

// Cursor is one inverted list's position in a merge: the record id it
// currently holds and a forward-only source of the ids after it. Advancing
// returns a new Cursor; the old value keeps its record id.
type Cursor struct {
	recordID uint32
	order    int
	next     func() (uint32, bool)
	stop     func()
}

// NewCursor positions a cursor on the first id of ids. order breaks ties
// between cursors holding the same id. The boolean is false when ids is
// empty; the source is already released in that case.
func NewCursor(ids iter.Seq[uint32], order int) (Cursor, bool) {
	next, stop := iter.Pull(ids)
	first, ok := next()
	if !ok {
		stop()
		return Cursor{}, false
	}
	return Cursor{
		recordID: first,
		order:    order,
		next:     next,
		stop:     stop,
	}, true
}

// RecordID returns the id the cursor is positioned on.
func (c Cursor) RecordID() uint32 {
	return c.recordID
}

// Next pulls the following id from the source. When the source is exhausted
// it is released and the boolean is false.
func (c Cursor) Next() (Cursor, bool) {
	id, ok := c.next()
	if !ok {
		c.stop()
		return Cursor{}, false
	}
	return Cursor{
		recordID: id,
		order:    c.order,
		next:     c.next,
		stop:     c.stop,
	}, true
}

// Stop releases the source. It is safe to call more than once.
func (c Cursor) Stop() {
	if c.stop != nil {
		c.stop()
	}
}

// Compare orders cursors by record id, then by creation order.
func (c Cursor) Compare(other Cursor) int {
	if n := cmp.Compare(c.recordID, other.recordID); n != 0 {
		return n
	}
	return cmp.Compare(c.order, other.order)
}
