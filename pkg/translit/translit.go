// Package translit turns display names and queries into the canonical ASCII
// word form that the index is keyed on.
//
// Both sides of a search go through the same path: names when the index is
// built, query words when it is searched. Cyrillic letters are transliterated
// through a fixed table, the silent letters ъ and ь are removed, and the result
// is lower-cased. Anything the table does not know passes through unchanged,
// so Latin names and digits keep working.
package translit

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind tells how a rune was resolved against the table.
type Kind int

const (
	// Unmapped runes are copied as they are.
	Unmapped Kind = iota
	// Mapped runes had a direct table entry.
	Mapped
	// MappedLower runes were upper-case letters whose lower-case form had an
	// entry. The replacement has to be upper-cased to keep the original case.
	MappedLower
)

// Lookup is the outcome of resolving a single rune.
type Lookup struct {
	Kind  Kind
	Value string
	Rune  rune
}

// Resolve looks r up in the transliteration table.
func Resolve(r rune) Lookup {
	if s, ok := cyrillic[r]; ok {
		return Lookup{Kind: Mapped, Value: s, Rune: r}
	}
	if s, ok := cyrillic[unicode.ToLower(r)]; ok {
		return Lookup{Kind: MappedLower, Value: s, Rune: r}
	}
	return Lookup{Kind: Unmapped, Rune: r}
}

// String renders the lookup result, restoring upper case for MappedLower.
func (l Lookup) String() string {
	switch l.Kind {
	case Mapped:
		return l.Value
	case MappedLower:
		return strings.ToUpper(l.Value)
	default:
		return string(l.Rune)
	}
}

// Transliterate replaces every known Cyrillic letter in s with its ASCII
// spelling, keeping case. Silent letters are removed; all other runes are
// left alone.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFC.String(s) {
		if silent[r] {
			continue
		}
		b.WriteString(Resolve(r).String())
	}
	return b.String()
}

// Normalize returns the canonical form of a single word.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(word string) string {
	return strings.ToLower(Transliterate(word))
}

// Tokenize splits text on single spaces and normalizes every token.
// Consecutive spaces produce empty tokens, which are kept.
func Tokenize(text string) []string {
	parts := strings.Split(text, " ")
	for i, p := range parts {
		parts[i] = Normalize(p)
	}
	return parts
}

// Words is Tokenize without the empty tokens. An empty word would match
// every indexed entry as a prefix, so callers that query the trie use this.
func Words(text string) []string {
	tokens := Tokenize(text)
	words := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			words = append(words, t)
		}
	}
	return words
}
