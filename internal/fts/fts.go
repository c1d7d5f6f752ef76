// CLAUDE:SUMMARY CJK-aware FTS5 text segmentation and query building for the unicode61 tokenizer.
// Package fts makes CJK text findable in an SQLite FTS5 index built with the
// unicode61 tokenizer. unicode61 has no CJK word segmentation and treats a
// run of Han characters as one giant token, so a two-character query would
// never match a longer run. We segment on the Go side instead: every CJK run
// is replaced by its overlapping bigrams plus its final character as a
// unigram (single characters for runs of length one) before indexing, and
// queries are rewritten to phrase-match the bigrams or prefix-match a single
// character. Non-CJK text passes through untouched and gets unicode61's
// normal word tokenization.
package fts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isCJK reports whether r belongs to a script without word separators that
// needs bigram segmentation.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Segment rewrites text for indexing: each CJK run becomes its overlapping
// bigrams followed by the run's final character as a unigram
// ("中文測試" -> "中文 文測 測試 試"), a lone CJK character stays a unigram,
// and everything else is copied verbatim with a space inserted at run
// boundaries. The trailing unigram makes every character reachable by a
// single-character prefix query: interior characters lead a bigram, and the
// final one, which only trails its bigram, gets its own token.
func Segment(text string) string { return segment(text, true) }

// querySegment expands CJK runs to bigrams only. Query phrases must match
// the consecutive bigram positions in the index, which the index-side
// trailing unigram would interrupt.
func querySegment(text string) string { return segment(text, false) }

func segment(text string, unigramTail bool) string {
	var sb strings.Builder
	sb.Grow(len(text) * 2)
	var run []rune
	lastSpace := true // suppress leading and doubled separators

	flush := func() {
		if len(run) == 0 {
			return
		}
		if !lastSpace {
			sb.WriteByte(' ')
		}
		if len(run) == 1 {
			sb.WriteRune(run[0])
		} else {
			for i := 0; i+1 < len(run); i++ {
				if i > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteRune(run[i])
				sb.WriteRune(run[i+1])
			}
			if unigramTail {
				sb.WriteByte(' ')
				sb.WriteRune(run[len(run)-1])
			}
		}
		// separate the run from whatever follows
		sb.WriteByte(' ')
		lastSpace = true
		run = run[:0]
	}

	for _, r := range text {
		if isCJK(r) {
			run = append(run, r)
			continue
		}
		flush()
		sb.WriteRune(r)
		lastSpace = unicode.IsSpace(r)
	}
	flush()
	return strings.TrimRight(sb.String(), " ")
}

// QueryExpr builds an FTS5 MATCH expression from a free-form query.
// Whitespace-separated terms are ANDed. A multi-character term containing
// CJK becomes a phrase over its bigrams so it matches any indexed run that
// contains it; every other term, single CJK characters included, becomes a
// quoted prefix token ("term"*) — a lone character prefix-matches the bigram
// it leads, or its trailing unigram when it ends a run. Embedded double
// quotes are doubled per FTS5 string syntax.
func QueryExpr(query string) string {
	terms := strings.Fields(query)
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		if strings.ContainsFunc(term, isCJK) && utf8.RuneCountInString(term) > 1 {
			parts = append(parts, `"`+escapeQuotes(querySegment(term))+`"`)
		} else {
			parts = append(parts, `"`+escapeQuotes(term)+`"*`)
		}
	}
	return strings.Join(parts, " ")
}

// LikePattern builds a substring LIKE pattern for the given query, escaping
// the LIKE metacharacters. Callers must pair it with ESCAPE '\'.
func LikePattern(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 2)
	sb.WriteByte('%')
	for _, r := range query {
		switch r {
		case '%', '_', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('%')
	return sb.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
