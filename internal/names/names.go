// Package names normalizes field names for heuristic matching and for use as
// identifiers.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips combining marks so "Příjmení" compares as "Prijmeni".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '_', '-', '.', '/', '\\', ':', ';', '\t':
		return true
	}
	return false
}

// Key lower-cases s, folds diacritics and drops separators and anything that
// is not a letter or digit: "Date-of_Birth" becomes "dateofbirth".
func Key(s string) string {
	s = strings.ToLower(fold(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Identifier converts s into a lowercase [a-z0-9_] identifier, collapsing
// separator runs into one underscore.
func Identifier(s string) string {
	s = strings.ToLower(fold(strings.TrimSpace(s)))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if isSeparator(r) {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}
	return strings.Trim(b.String(), "_")
}

// Tokens splits s into lower-cased words at separators, case changes and
// letter/digit boundaries: "customerEmail2" becomes [customer email 2] and
// "URLPath" becomes [url path].
func Tokens(s string) []string {
	rs := []rune(fold(strings.TrimSpace(s)))
	var out []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, strings.ToLower(string(rs[start:end])))
			start = -1
		}
	}
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start >= 0 && wordBoundary(rs, i) {
			flush(i)
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(rs))
	return out
}

// wordBoundary reports whether a new word starts at rs[i]. rs[i-1] is a
// letter or digit.
func wordBoundary(rs []rune, i int) bool {
	prev, cur := rs[i-1], rs[i]
	switch {
	case unicode.IsDigit(prev) != unicode.IsDigit(cur):
		return true
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
		return true
	}
	return false
}

// SegmentTokens splits a dot path and tokenizes each segment. Segments
// without words are dropped.
func SegmentTokens(path string) [][]string {
	var out [][]string
	for _, p := range strings.Split(path, ".") {
		if toks := Tokens(p); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// minGluedPrefix is the shortest fragment that may also match the start of a
// longer token, as "email" does in "emailaddress".
const minGluedPrefix = 5

// HasFragment reports whether frag spells a run of adjacent tokens, so
// "dateofbirth" is found in [date of birth] but "fee" is not found in
// [coffee]. Fragments of at least five letters also match as the prefix of a
// single glued token.
func HasFragment(tokens []string, frag string) bool {
	if frag == "" {
		return false
	}
	for i := range tokens {
		if len(frag) >= minGluedPrefix && strings.HasPrefix(tokens[i], frag) {
			return true
		}
		rest := frag
		for j := i; j < len(tokens) && strings.HasPrefix(rest, tokens[j]); j++ {
			rest = rest[len(tokens[j]):]
			if rest == "" {
				return true
			}
		}
	}
	return false
}
