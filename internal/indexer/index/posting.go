package index

import "cmp"

// Defaults applied to postings created without explicit values.
const (
	DefaultTermFrequency = 1
	DefaultScore         = 0.0
)

// Posting links a term to one record: how often the term occurs in it and
// the relevance score assigned by ranking. Identity is the record id alone.
type Posting struct {
	ID            uint32  `json:"id"`
	TermFrequency int     `json:"term_frequency"`
	Score         float64 `json:"score"`
}

// NewPosting returns a posting for id with the default frequency and score.
func NewPosting(id uint32) Posting {
	return NewScoredPosting(id, DefaultTermFrequency, DefaultScore)
}

// NewPostingWithFrequency returns a posting with an explicit term frequency.
func NewPostingWithFrequency(id uint32, termFrequency int) Posting {
	return NewScoredPosting(id, termFrequency, DefaultScore)
}

// NewScoredPosting returns a fully specified posting.
func NewScoredPosting(id uint32, termFrequency int, score float64) Posting {
	return Posting{
		ID:            id,
		TermFrequency: termFrequency,
		Score:         score,
	}
}

// IncreaseFrequency records one more occurrence of the term.
func (p *Posting) IncreaseFrequency() {
	p.TermFrequency++
}

func (p *Posting) SetFrequency(termFrequency int) {
	p.TermFrequency = termFrequency
}

func (p *Posting) SetScore(score float64) {
	p.Score = score
}

// Key is the hash identity of the posting. Frequency and score do not
// participate.
func (p Posting) Key() uint32 {
	return p.ID
}

// Equal reports whether both postings refer to the same record.
func (p Posting) Equal(other Posting) bool {
	return p.ID == other.ID
}

// ComparePostings orders postings by record id, ascending.
func ComparePostings(a, b Posting) int {
	return cmp.Compare(a.ID, b.ID)
}
