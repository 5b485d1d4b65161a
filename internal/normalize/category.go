// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"regexp"
	"strings"
)

// Category is the catalog's own category label.
type Category string

const (
	CategoryMovie       Category = "pelicula"
	CategoryMovieHD     Category = "peliculaHD"
	CategorySeries      Category = "serie"
	CategorySeriesHD    Category = "serieHD"
	CategoryDocumentary Category = "documental"
	CategoryMusic       Category = "musica"
	CategoryMisc        Category = "variado"
	CategoryGame        Category = "juego"
)

// Categories lists every label in declaration order.
var Categories = []Category{
	CategoryMovie,
	CategoryMovieHD,
	CategorySeries,
	CategorySeriesHD,
	CategoryDocumentary,
	CategoryMusic,
	CategoryMisc,
	CategoryGame,
}

// videoExtensions is a priority list; the first hit decides.
var videoExtensions = []string{
	"3g2", "3gp", "aaf", "asf", "avchd", "avi", "drc", "flv", "m2v", "m3u8",
	"m4p", "m4v", "mkv", "mng", "mov", "mp2", "mp4", "mpe", "mpeg", "mpg",
	"mpv", "mxf", "nsv", "ogg", "ogv", "qt", "rm", "rmvb", "roq", "svi",
	"vob", "webm", "wmv", "yuv",
}

var (
	shortEpisodeRegexp = regexp.MustCompile(`\d[xX]\d{2}`)
	sceneEpisodeRegexp = regexp.MustCompile(`S\d{2}E\d{2}`)
)

// Classify infers a category from a file name.
//
// Extensions are matched as substrings anywhere in the name, so "avi" inside an
// unrelated word still counts as video.
func Classify(fileName string) Category {
	for _, ext := range videoExtensions {
		if !strings.Contains(fileName, ext) {
			continue
		}

		hd := strings.Contains(fileName, "720p") || strings.Contains(fileName, "1080p")
		if shortEpisodeRegexp.MatchString(fileName) || sceneEpisodeRegexp.MatchString(fileName) {
			if hd {
				return CategorySeriesHD
			}
			return CategorySeries
		}
		if hd {
			return CategoryMovieHD
		}
		return CategoryMovie
	}
	return CategoryMisc
}

// Valid reports whether c is a known label.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
