// Package textmatch provides the word-boundary matching shared by the
// classifier, the clustering of feed entries and the relevance scorer.
package textmatch

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "i": true, "we": true, "you": true,
	"he": true, "she": true, "they": true, "my": true, "your": true,
	"how": true, "what": true, "when": true, "where": true, "why": true,
	"not": true, "no": true, "new": true, "just": true, "about": true,
	"up": true, "out": true, "if": true, "so": true, "can": true,
	"all": true, "more": true, "also": true, "than": true, "very": true,
	"says": true, "said": true, "after": true, "over": true, "into": true,
}

// Tokens lowercases s and splits it on every rune that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SignificantTokens drops stopwords and single-character tokens.
func SignificantTokens(s string) []string {
	var out []string
	for _, w := range Tokens(s) {
		if len(w) >= 2 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Key is the sorted, de-duplicated significant tokens of s joined by spaces.
// Two titles with the same wording in a different order share a key.
func Key(s string) string {
	seen := make(map[string]bool)
	var uniq []string
	for _, t := range SignificantTokens(s) {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}

// ContainsPhrase reports whether the tokens of phrase occur contiguously in
// text. Matching is case-insensitive and respects word boundaries, so "ice"
// does not match "police".
func ContainsPhrase(text, phrase string) bool {
	needle := Tokens(phrase)
	if len(needle) == 0 {
		return false
	}
	return containsSeq(Tokens(text), needle)
}

// Fuzzy is the bidirectional form of ContainsPhrase: either side may be the
// shorter name ("Warren" vs "Senator Elizabeth Warren").
func Fuzzy(a, b string) bool {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	return containsSeq(ta, tb) || containsSeq(tb, ta)
}

func containsSeq(hay, needle []string) bool {
	if len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Jaccard returns the Jaccard index of two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool)
	for _, t := range a {
		setA[t] = true
	}

	setB := make(map[string]bool)
	for _, t := range b {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	unionSize := len(setA) + len(setB) - intersection
	if unionSize == 0 {
		return 0
	}
	return float64(intersection) / float64(unionSize)
}
