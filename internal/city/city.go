// Package city provides the city records the search engine indexes and the
// sources they are loaded from.
package city

import (
	"fmt"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/record"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/tokenizer"
)

// City is a named place. It is indexed under the words of its name.
type City struct {
	id        uint32
	name      string
	state     string
	lat       float64
	lon       float64
	relevance float64
	terms     []string
}

// Info is the presentation form of a City.
type Info struct {
	ID        uint32  `json:"id"`
	Name      string  `json:"name"`
	State     string  `json:"state"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Relevance float64 `json:"relevance"`
}

// New returns a City. The name must contain at least one indexable word.
func New(id uint32, name, state string, lat, lon, relevance float64) (*City, error) {
	terms := tokenizer.Terms(name)
	if len(terms) == 0 {
		return nil, fmt.Errorf("city %d: name %q has no indexable words", id, name)
	}
	return &City{
		id:        id,
		name:      name,
		state:     state,
		lat:       lat,
		lon:       lon,
		relevance: relevance,
		terms:     terms,
	}, nil
}

func (c *City) ID() uint32 { return c.id }

// Size is the number of words in the name.
func (c *City) Size() int { return len(c.terms) }

// Keys returns the lowercased words of the name, repeats included.
func (c *City) Keys() []string { return c.terms }

func (c *City) Name() string       { return c.name }
func (c *City) State() string      { return c.state }
func (c *City) Lat() float64       { return c.lat }
func (c *City) Lon() float64       { return c.lon }
func (c *City) Relevance() float64 { return c.relevance }
func (c *City) String() string     { return fmt.Sprintf("%s (%s)", c.name, c.state) }

func (c *City) Info() Info {
	return Info{
		ID:        c.id,
		Name:      c.name,
		State:     c.state,
		Lat:       c.lat,
		Lon:       c.lon,
		Relevance: c.relevance,
	}
}

// Set is an immutable collection of cities keyed by id. It implements
// record.KeyRecordSet[string].
type Set struct {
	cities []*City
	byID   map[uint32]*City
}

// NewSet builds a Set. Duplicate ids are rejected.
func NewSet(cities ...*City) (*Set, error) {
	s := &Set{
		cities: make([]*City, 0, len(cities)),
		byID:   make(map[uint32]*City, len(cities)),
	}
	for _, c := range cities {
		if _, exists := s.byID[c.id]; exists {
			return nil, fmt.Errorf("duplicate city id %d", c.id)
		}
		s.byID[c.id] = c
		s.cities = append(s.cities, c)
	}
	return s, nil
}

func (s *Set) All() iter.Seq[record.KeyRecord[string]] {
	return func(yield func(record.KeyRecord[string]) bool) {
		for _, c := range s.cities {
			if !yield(c) {
				return
			}
		}
	}
}

func (s *Set) ByID(id uint32) (record.KeyRecord[string], bool) {
	c, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// City returns the city with the given id.
func (s *Set) City(id uint32) (*City, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Cities iterates the set in load order.
func (s *Set) Cities() iter.Seq[*City] {
	return func(yield func(*City) bool) {
		for _, c := range s.cities {
			if !yield(c) {
				return
			}
		}
	}
}

func (s *Set) Len() int { return len(s.cities) }
