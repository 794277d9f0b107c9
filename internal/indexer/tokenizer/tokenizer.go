// Package tokenizer splits record text into index keys. It lower-cases input
// and splits on non-alphanumeric boundaries. Stop words are kept and no
// stemming is applied.
package tokenizer

import (
	"strings"
	"unicode"
)

// Terms returns the lowercased words of text in order, duplicates included.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
