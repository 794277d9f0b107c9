// Package parser turns a free-text query into a QueryPlan. Words are joined
// with AND unless an OR operator appears; NOT excludes the word after it.
package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

// QueryPlan lists distinct normalized terms in first-seen order.
type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	words := strings.Fields(query)
	excludeNext := false
	for _, word := range words {
		switch word {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		terms := tokenizer.Terms(word)
		if len(terms) == 0 {
			continue
		}
		if excludeNext {
			plan.ExcludeTerms = appendDistinct(plan.ExcludeTerms, terms...)
			excludeNext = false
		} else {
			plan.Terms = appendDistinct(plan.Terms, terms...)
		}
	}
	return plan
}

// Normalized is a canonical rendering of the plan: equivalent queries that
// differ only in term order, case or repetition render identically.
func (p *QueryPlan) Normalized() string {
	terms := slices.Sorted(slices.Values(p.Terms))
	parts := []string{p.Type.String(), strings.Join(terms, ",")}
	if len(p.ExcludeTerms) > 0 {
		excludes := slices.Sorted(slices.Values(p.ExcludeTerms))
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}

func appendDistinct(dst []string, terms ...string) []string {
	for _, t := range terms {
		if !slices.Contains(dst, t) {
			dst = append(dst, t)
		}
	}
	return dst
}
