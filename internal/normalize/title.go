// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"regexp"
	"strings"
)

// titleRule is a single regexp rewrite applied to a release title.
type titleRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

// titleRules run in order. Later rules rely on the cleanup done by earlier ones.
var titleRules = []titleRule{
	{name: "spanish_sub", pattern: regexp.MustCompile(`\b(Spanish)sub\b`), replacement: "${1}.sub"},
	{name: "english_sub", pattern: regexp.MustCompile(`\b(English)sub\b`), replacement: "${1}.sub"},
	{name: "resolution_1080", pattern: regexp.MustCompile(`\bm?1080p?\b`), replacement: "1080p"},
	{name: "spanish_words", pattern: regexp.MustCompile(`(?i)\b(espa[ñn]ol|castellano)`), replacement: "Spanish"},
	{name: "spanish_esp_upper", pattern: regexp.MustCompile(`\b ESP \b`), replacement: " Spanish "},
	{name: "spanish_short", pattern: regexp.MustCompile(`(?i)\b(esp|spa)\b`), replacement: "Spanish"},
	{name: "year_parenthetical", pattern: regexp.MustCompile(`\(((?:19|20)\d{2})(?:[^0-9p)][^)]*)?\)`), replacement: "(${1})"},
}

// groupTagger inserts a language tag when its pattern is found.
type groupTagger struct {
	pattern     *regexp.Regexp
	replacement string
}

func (t groupTagger) tag(title string) (string, bool) {
	if !t.pattern.MatchString(title) {
		return title, false
	}
	return t.pattern.ReplaceAllString(title, t.replacement), true
}

var (
	// Pelicula (2020) -> Pelicula (2020) Spanish
	yearPrefixTagger = groupTagger{
		pattern:     regexp.MustCompile(`(?i)^(.*?\((?:19|20)\d{2}\))`),
		replacement: "${1} Spanish ",
	}
	// Serie 1x02 -> Serie 1x02 Spanish
	episodeTagger = groupTagger{
		pattern:     regexp.MustCompile(`\d[xX]\d{2}`),
		replacement: "${0} Spanish",
	}
)

// releaseGroup is a known Spanish release group and the taggers tried, in order,
// when a title mentions it.
type releaseGroup struct {
	token   string
	taggers []groupTagger
}

var spanishTaggers = []groupTagger{yearPrefixTagger, episodeTagger}

// spanishReleaseGroups are checked left to right; the first group that tags the
// title ends the scan.
var spanishReleaseGroups = []releaseGroup{
	{token: "nocturnia", taggers: spanishTaggers},
	{token: "exploradoresp2p", taggers: spanishTaggers},
	{token: "xusman", taggers: spanishTaggers},
	{token: "geot", taggers: spanishTaggers},
	{token: "hispashare", taggers: spanishTaggers},
	{token: "cartmangold", taggers: spanishTaggers},
	{token: "grupots", taggers: spanishTaggers},
	{token: "eth@n", taggers: spanishTaggers},
	{token: "grupos hds", taggers: spanishTaggers},
	{token: "grupo hds", taggers: spanishTaggers},
	{token: "grupohds", taggers: spanishTaggers},
	{token: "sharerip", taggers: spanishTaggers},
	{token: "bryan_122", taggers: spanishTaggers},
	{token: "yamil", taggers: spanishTaggers},
}

// SpanishReleaseGroups returns the release group tokens in evaluation order.
func SpanishReleaseGroups() []string {
	out := make([]string, len(spanishReleaseGroups))
	for i, g := range spanishReleaseGroups {
		out[i] = g.token
	}
	return out
}

// Title cleans a raw catalog file name into a release title: it fixes glued
// subtitle tags, normalizes 1080p and Spanish language tokens, trims year
// parentheticals and tags titles from known Spanish release groups.
func Title(raw string) string {
	title := raw
	for _, rule := range titleRules {
		title = rule.pattern.ReplaceAllString(title, rule.replacement)
	}
	return tagReleaseGroup(title)
}

func tagReleaseGroup(title string) string {
	lower := strings.ToLower(title)
	for _, group := range spanishReleaseGroups {
		if !strings.Contains(lower, group.token) {
			continue
		}
		for _, tagger := range group.taggers {
			if tagged, ok := tagger.tag(title); ok {
				return tagged
			}
		}
	}
	return title
}
