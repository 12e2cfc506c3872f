// Package moderation censors forbidden words in chat content before it
// reaches history buffers or live connections.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"lyceum/errors"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	maskingRune rune
}

// NewModerator builds the Aho-Corasick automaton from the word list.
// Words are matched case-insensitively.
func NewModerator(words []string, maskingRune rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, errors.ErrEmptyWordList
	}
	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = lowerRunes([]rune(w))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, maskingRune: maskingRune}, nil
}

// Censor replaces every occurrence of a forbidden word with the masking
// rune, preserving the length and spacing of the original text.
func (m *Moderator) Censor(content string) string {
	runes := []rune(content)
	spans := m.matcher.MultiPatternSearch(lowerRunes(runes), false)
	if len(spans) == 0 {
		return content
	}
	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(runes); i++ {
			runes[i] = m.maskingRune
		}
	}
	return string(runes)
}

func lowerRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}
