// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"regexp"
	"strings"
)

// episodeRule rewrites a fragment when it applies.
type episodeRule struct {
	name  string
	apply func(fragment string) (string, bool)
}

var (
	episodeTokenRegexp      = regexp.MustCompile(`(?i)([0-9]+)x([0-9]+)`)
	episodeShortRangeRegexp = regexp.MustCompile(`(?i)^([0-9]+)x([0-9]+)[^0-9]+([0-9]+)[.]?$`)
	episodeSingleRegexp     = regexp.MustCompile(`(?i)^([0-9]+)x([0-9]+)(.*)$`)
)

// episodeRules are evaluated in order, first match wins.
var episodeRules = []episodeRule{
	{
		// 5x08 al 5x13. -> S05E08-E13
		name: "multi_token_range",
		apply: func(fragment string) (string, bool) {
			matches := episodeTokenRegexp.FindAllStringSubmatch(fragment, -1)
			if len(matches) < 2 {
				return "", false
			}
			var b strings.Builder
			b.WriteString(sceneCode(matches[0][1], matches[0][2]))
			for _, m := range matches[1:] {
				b.WriteString("-E")
				b.WriteString(pad2(m[2]))
			}
			return b.String(), true
		},
	},
	{
		// 1x04 - 05. -> S01E04-E05
		name: "short_range",
		apply: func(fragment string) (string, bool) {
			m := episodeShortRangeRegexp.FindStringSubmatch(fragment)
			if m == nil {
				return "", false
			}
			return sceneCode(m[1], m[2]) + "-E" + pad2(m[3]), true
		},
	},
	{
		// 1x08 - CONTRASEÑA: x -> S01E08 CONTRASEÑA: x
		name: "single",
		apply: func(fragment string) (string, bool) {
			m := episodeSingleRegexp.FindStringSubmatch(fragment)
			if m == nil {
				return "", false
			}
			code := sceneCode(m[1], m[2])
			if m[3] != "" {
				if rest := strings.TrimSpace(strings.ReplaceAll(m[3], " -", "")); rest != "" {
					code += " " + rest
				}
			}
			return code, true
		},
	},
}

// CanonicalEpisode converts loose episode markers into a scene code. Fragments
// without a recognizable marker are returned trimmed but otherwise unchanged.
func CanonicalEpisode(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	for _, rule := range episodeRules {
		if out, ok := rule.apply(fragment); ok {
			return out
		}
	}
	return fragment
}

func sceneCode(season, episode string) string {
	return "S" + pad2(season) + "E" + pad2(episode)
}

// pad2 left-pads a digit string to two characters. Longer values are kept as is.
func pad2(digits string) string {
	if len(digits) >= 2 {
		return digits
	}
	return strings.Repeat("0", 2-len(digits)) + digits
}
