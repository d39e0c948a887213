// Package search provides fuzzy matching over post fields for the blog
// search endpoint. No index is persisted: every call scans the corpus,
// which is fine at the tens-to-hundreds of posts this site carries.
package search

import (
	"errors"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrEmptyQuery indicates a search with no query text.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// DefaultThreshold is the match strictness used when the caller passes a
// negative threshold.
const DefaultThreshold = 0.3

// Score tiers. Exact field equality scores 0; an exact substring scores
// substringScore; fuzzy word matches score in (substringScore, 1].
const substringScore = 0.1

// Document is one searchable corpus item.
type Document struct {
	ID     string
	Fields map[string]string
}

// Span marks the matched byte range within the matched field value.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Match is one search hit. Lower score means a better match; score 0 is an
// exact field match.
type Match struct {
	Index int     `json:"index"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Field string  `json:"field"`
	Span  Span    `json:"span"`
}

// Search scans the given fields of every document for query.
//
// threshold controls strictness: 0 accepts exact field matches only, 1
// accepts any fuzzy match; a negative value selects DefaultThreshold.
// Results are ordered by ascending score with corpus order breaking ties,
// so output is deterministic for a fixed corpus and query.
func Search(docs []Document, query string, fields []string, threshold float64) ([]Match, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	matches := make([]Match, 0)
	for i, doc := range docs {
		best, ok := bestFieldMatch(doc, q, fields)
		if !ok || best.Score > threshold {
			continue
		}
		best.Index = i
		best.ID = doc.ID
		matches = append(matches, best)
	}

	// Stable keeps corpus order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})
	return matches, nil
}

// bestFieldMatch returns the lowest-scoring match across the requested
// fields of one document.
func bestFieldMatch(doc Document, q string, fields []string) (Match, bool) {
	var best Match
	found := false
	for _, field := range fields {
		value, ok := doc.Fields[field]
		if !ok || value == "" {
			continue
		}
		score, span, ok := scoreValue(q, value)
		if !ok {
			continue
		}
		if !found || score < best.Score {
			best = Match{Score: score, Field: field, Span: span}
			found = true
		}
	}
	return best, found
}

// scoreValue scores query against one field value.
//
//   - exact (case-insensitive) equality: 0
//   - exact substring: substringScore, span covering the occurrence
//   - fuzzy match against a whitespace-separated word: edit distance
//     normalized by word length, mapped above the substring tier,
//     span covering the word
//
// Spans are byte offsets into value itself, never into a folded copy:
// case folding can change byte lengths (İ lowercases shorter), so
// matching folds rune by rune while tracking positions in the original.
func scoreValue(q, value string) (float64, Span, bool) {
	if strings.EqualFold(value, q) {
		return 0, Span{Start: 0, End: len(value)}, true
	}

	if start, end, ok := foldIndex(value, q); ok {
		return substringScore, Span{Start: start, End: end}, true
	}

	bestScore := 0.0
	var bestSpan Span
	found := false
	for _, w := range fieldsWithOffsets(value) {
		dist := fuzzy.RankMatchNormalizedFold(q, w.text)
		if dist < 0 {
			continue
		}
		norm := float64(dist) / float64(len(w.text))
		if norm > 1 {
			norm = 1
		}
		// Fuzzy scores live strictly above the substring tier.
		score := substringScore + (1-substringScore)*norm
		if !found || score < bestScore {
			bestScore = score
			bestSpan = Span{Start: w.start, End: w.start + len(w.text)}
			found = true
		}
	}
	return bestScore, bestSpan, found
}

type wordSpan struct {
	text  string
	start int
}

// fieldsWithOffsets splits s around whitespace, keeping each word's byte
// offset in s.
func fieldsWithOffsets(s string) []wordSpan {
	var words []wordSpan
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, wordSpan{text: s[start:i], start: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, wordSpan{text: s[start:], start: start})
	}
	return words
}

// foldIndex locates the first case-insensitive occurrence of sub in s and
// returns its byte range within s.
func foldIndex(s, sub string) (int, int, bool) {
	subRunes := []rune(sub)
	if len(subRunes) == 0 {
		return 0, 0, false
	}
	for start := 0; start < len(s); {
		end := start
		matched := 0
		for _, want := range subRunes {
			r, size := utf8.DecodeRuneInString(s[end:])
			if size == 0 || unicode.ToLower(r) != unicode.ToLower(want) {
				break
			}
			end += size
			matched++
		}
		if matched == len(subRunes) {
			return start, end, true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		start += size
	}
	return 0, 0, false
}
