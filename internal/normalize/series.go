// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"strconv"
	"strings"
)

// SceneOptions tunes SceneTitle.
type SceneOptions struct {
	// Year is appended after the show name when set. Only useful when the
	// original query was a scene-style episode search.
	Year int
}

// SceneTitle composes a scene-style title from a catalog series heading and an
// episode fragment.
//
//	"Grace and Frankie - 5ª Temporada [720p]", "5x08 al 5x13."
//	-> "Grace and Frankie S05E08-E13 SPANISH 720p x264"
func SceneTitle(heading, episodeFragment string, opts SceneOptions) string {
	show := heading
	if idx := strings.Index(heading, " - "); idx >= 0 {
		show = heading[:idx]
	}
	show = strings.TrimSpace(show)

	parts := []string{show}
	if opts.Year > 0 {
		parts = append(parts, strconv.Itoa(opts.Year))
	}
	if code := CanonicalEpisode(episodeFragment); code != "" {
		parts = append(parts, code)
	}
	parts = append(parts, "SPANISH")

	lower := strings.ToLower(heading)
	if strings.Contains(lower, "es-en") {
		parts = append(parts, "ENGLISH")
	}

	switch {
	case strings.Contains(lower, "720p"):
		parts = append(parts, "720p")
	case strings.Contains(lower, "1080p"):
		parts = append(parts, "1080p")
	default:
		parts = append(parts, "SDTV")
	}

	if strings.Contains(lower, "hdtv") {
		parts = append(parts, "HDTV")
	}

	if strings.Contains(lower, "x265") {
		parts = append(parts, "x265")
	} else {
		parts = append(parts, "x264")
	}

	return strings.Join(parts, " ")
}

// EpisodeCount returns how many episodes a canonical code spans, e.g. 3 for
// S02E01-E02-E03. Codes without episodes count as one.
func EpisodeCount(code string) int {
	return strings.Count(code, "-E") + 1
}
