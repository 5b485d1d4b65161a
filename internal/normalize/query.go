// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SearchQuery is the caller's canonical search request.
type SearchQuery struct {
	// Term is the free text search term
	Term string `json:"term"`
	// Year for movies/shows (optional)
	Year *int `json:"year,omitempty"`
	// Season for TV shows (optional)
	Season *int `json:"season,omitempty"`
	// Episode for TV shows (optional)
	Episode *int `json:"episode,omitempty"`
}

// ParsedQuery is a normalized query ready for the remote catalog.
type ParsedQuery struct {
	Query SearchQuery
	// RemoteToken is the <season>x<episode> form expected by the catalog. It only
	// feeds the outbound keyword and is never written back into Query.
	RemoteToken string

	// term with the scene code rewritten in place, when the code survived normalization
	rewrittenTerm string
}

var (
	punctuationRegexp  = regexp.MustCompile(`[-._()@/\\\[\]+%]`)
	whitespaceRegexp   = regexp.MustCompile(`\s+`)
	trailingYearRegexp = regexp.MustCompile(`( +([0-9]{4}))$`)
	noiseWordsRegexp   = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])(espa[ñn]ol|spanish|castellano|spa)([^\p{L}\p{N}_]|$)`)
	sceneCodeRegexp    = regexp.MustCompile(`S(\d{2})E(\d{2})`)
	sceneTokenRegexp   = regexp.MustCompile(`(?i)\bS(\d{2})E(\d{2})\b`)
)

// ParseQuery strips noise from a search term, extracts a trailing year and derives
// the catalog's episode token.
//
//	"Marco.Polo.2014.S02E08" -> term "Marco Polo", year 2014, token "2x08"
func ParseQuery(q SearchQuery) ParsedQuery {
	term := q.Term

	// lift a scene code out of the raw term unless the caller already split it
	if q.Season == nil && q.Episode == nil {
		if m := sceneTokenRegexp.FindStringSubmatchIndex(term); m != nil {
			season, _ := strconv.Atoi(term[m[2]:m[3]])
			episode, _ := strconv.Atoi(term[m[4]:m[5]])
			q.Season = &season
			q.Episode = &episode
			term = term[:m[0]] + " " + term[m[1]:]
		}
	}

	term = collapseSpaces(punctuationRegexp.ReplaceAllString(term, " "))

	if m := trailingYearRegexp.FindStringSubmatch(term); m != nil {
		year, _ := strconv.Atoi(m[2])
		q.Year = &year
		term = strings.TrimSuffix(term, m[1])
	}

	term = removeNoiseWords(term)
	q.Term = term

	parsed := ParsedQuery{Query: q}

	if m := sceneCodeRegexp.FindStringSubmatch(term); m != nil {
		season, _ := strconv.Atoi(m[1])
		episode, _ := strconv.Atoi(m[2])
		parsed.RemoteToken = RemoteToken(season, episode)
		parsed.rewrittenTerm = sceneCodeRegexp.ReplaceAllString(term, parsed.RemoteToken)
	} else if q.Season != nil && q.Episode != nil {
		parsed.RemoteToken = RemoteToken(*q.Season, *q.Episode)
	}

	return parsed
}

// RemoteToken formats a season/episode pair the way the catalog indexes it:
// season unpadded, episode padded to two digits.
func RemoteToken(season, episode int) string {
	return fmt.Sprintf("%dx%02d", season, episode)
}

// Empty reports whether there is nothing to search for.
func (p ParsedQuery) Empty() bool {
	return strings.TrimSpace(p.Query.Term) == ""
}

// Keyword builds the outbound search keyword: term, remote token, then year.
func (p ParsedQuery) Keyword() string {
	parts := make([]string, 0, 3)
	if p.rewrittenTerm != "" {
		parts = append(parts, p.rewrittenTerm)
	} else {
		parts = append(parts, p.Query.Term)
		if p.RemoteToken != "" {
			parts = append(parts, p.RemoteToken)
		}
	}
	if p.Query.Year != nil {
		parts = append(parts, strconv.Itoa(*p.Query.Year))
	}
	return collapseSpaces(strings.Join(parts, " "))
}

func removeNoiseWords(term string) string {
	// matches share separators, so repeat until stable for runs like "spa castellano"
	for {
		next := noiseWordsRegexp.ReplaceAllString(term, "$1$3")
		if next == term {
			break
		}
		term = next
	}
	return collapseSpaces(term)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRegexp.ReplaceAllString(s, " "))
}
