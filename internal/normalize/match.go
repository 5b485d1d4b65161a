// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wordRegexp = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// foldAccents strips combining marks so "película" compares equal to "pelicula".
func foldAccents(s string) string {
	// transform.Chain is stateful, build one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// significantWords lowercases, folds accents and drops words of two letters or less.
func significantWords(s string) []string {
	words := wordRegexp.FindAllString(foldAccents(strings.ToLower(s)), -1)
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// MatchWords reports whether every significant word of query appears as a
// word of title.
func MatchWords(query, title string) bool {
	titleWords := make(map[string]struct{})
	for _, w := range significantWords(title) {
		titleWords[w] = struct{}{}
	}
	for _, w := range significantWords(query) {
		if _, ok := titleWords[w]; !ok {
			return false
		}
	}
	return true
}
